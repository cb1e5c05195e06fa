package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"casa_pronosticos/internal/cache"
)

// Service provides the ledger operations on a Store backend: recording
// cumulative meter readings, deriving hourly deltas, and keeping a day's
// sequence consistent after edits. It owns the cache invalidation for every
// write path so a session always reads its own writes.
type Service struct {
	store    Store
	cache    cache.Cache
	clock    Clock
	machines map[string]struct{}
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewService creates a new Service. machines is the fixed set of machine
// identifiers readings are accepted for.
func NewService(store Store, c cache.Cache, clock Clock, machines []string, cacheTTL time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	set := make(map[string]struct{}, len(machines))
	for _, m := range machines {
		set[m] = struct{}{}
	}
	return &Service{
		store:    store,
		cache:    c,
		clock:    clock,
		machines: set,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// RecordReading validates and persists one cumulative reading for
// (date, machineID, hour). The reading must stay sandwiched between its
// hour-ordered neighbors' totals. If the slot is already occupied the caller
// must have confirmed replacement, otherwise ErrSlotOccupied is returned.
// Later records of the same day and machine are recomputed afterwards.
func (s *Service) RecordReading(ctx context.Context, date, machineID string, hour int, total decimal.Decimal, meta Metadata, confirmReplace bool) (*SaleRecord, error) {
	if hour < 0 || hour > 23 {
		return nil, validationf("hour %d out of range 0-23", hour)
	}
	if total.IsNegative() {
		return nil, validationf("cumulative total must not be negative")
	}
	if _, ok := s.machines[machineID]; !ok {
		return nil, validationf("unknown machine %q", machineID)
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return nil, validationf("malformed date %q", date)
	}
	if err := s.rejectFuture(date, hour); err != nil {
		return nil, err
	}

	day, err := s.store.QueryDay(ctx, date, machineID)
	if err != nil {
		return nil, &PersistenceError{Op: "query day", Err: err}
	}

	prev, next, existing := neighbors(day, hour)
	if existing != nil && !confirmReplace {
		return nil, ErrSlotOccupied
	}
	prevTotal := decimal.Zero
	if prev != nil {
		prevTotal = prev.CumulativeTotal
	}
	if total.LessThan(prevTotal) {
		return nil, validationf("new total %s is less than the previous hour's total %s", total, prevTotal)
	}
	if next != nil && total.GreaterThan(next.CumulativeTotal) {
		return nil, validationf("new total %s is greater than the next hour's total %s", total, next.CumulativeTotal)
	}

	rec := &SaleRecord{
		ID:              uuid.NewString(),
		Date:            date,
		Hour:            hour,
		MachineID:       machineID,
		CumulativeTotal: total,
		Amount:          total.Sub(prevTotal),
		OperatorID:      meta.OperatorID,
		Notes:           meta.Notes,
		LastUpdated:     s.clock.Now(),
	}

	if existing != nil {
		// Replace keeps delete-then-recreate semantics rather than patching
		// in place, so a replaced slot always carries a fresh id.
		ops := []WriteOp{
			{Kind: WriteDelete, ID: existing.ID},
			{Kind: WriteCreate, Record: rec},
		}
		if err := s.store.BatchWrite(ctx, ops); err != nil {
			return nil, &PersistenceError{Op: "replace record", Err: err}
		}
	} else if err := s.store.Create(ctx, rec); err != nil {
		return nil, &PersistenceError{Op: "create record", Err: err}
	}

	day = spliceByHour(day, rec)
	if err := s.cascade(ctx, day); err != nil {
		// The record and a prefix of the cascade are already persisted, so a
		// cached pre-write snapshot must not keep serving while the caller
		// reconciles the day.
		s.invalidateDate(ctx, date)
		return rec, err
	}

	s.invalidateDate(ctx, date)
	s.logger.Info("reading recorded",
		zap.String("record_id", rec.ID),
		zap.String("date", date),
		zap.String("machine_id", machineID),
		zap.Int("hour", hour),
		zap.String("amount", rec.Amount.String()),
	)
	return rec, nil
}

// EditReading changes a record's cumulative total. Neighbors are resolved by
// hour order within the same date and machine, never by id. Every later record
// of the day is recomputed in ascending hour order; the cascade is idempotent.
func (s *Service) EditReading(ctx context.Context, id string, newTotal decimal.Decimal) (*SaleRecord, error) {
	if newTotal.IsNegative() {
		return nil, validationf("cumulative total must not be negative")
	}
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		if err == ErrNotFound {
			return nil, err
		}
		return nil, &PersistenceError{Op: "get record", Err: err}
	}

	day, err := s.store.QueryDay(ctx, rec.Date, rec.MachineID)
	if err != nil {
		return nil, &PersistenceError{Op: "query day", Err: err}
	}

	prev, next, target := neighbors(day, rec.Hour)
	if target == nil {
		return nil, ErrNotFound
	}
	prevTotal := decimal.Zero
	if prev != nil {
		prevTotal = prev.CumulativeTotal
	}
	if newTotal.LessThan(prevTotal) {
		return nil, validationf("new total %s is less than the previous hour's total %s", newTotal, prevTotal)
	}
	if next != nil && newTotal.GreaterThan(next.CumulativeTotal) {
		return nil, validationf("new total %s is greater than the next hour's total %s", newTotal, next.CumulativeTotal)
	}

	if !target.CumulativeTotal.Equal(newTotal) {
		target.CumulativeTotal = newTotal
		target.LastUpdated = s.clock.Now()
	}

	if err := s.cascade(ctx, day); err != nil {
		s.invalidateDate(ctx, rec.Date)
		return target, err
	}

	s.invalidateDate(ctx, rec.Date)
	s.logger.Info("reading edited",
		zap.String("record_id", target.ID),
		zap.String("date", target.Date),
		zap.String("machine_id", target.MachineID),
		zap.String("total", newTotal.String()),
	)
	return target, nil
}

// DeleteReading removes a record. With patchNext the immediately following
// record's amount is corrected against the new previous total in the same
// batch; without it the design treats deletion as removing a data point and
// later amounts keep their recorded values.
func (s *Service) DeleteReading(ctx context.Context, id string, patchNext bool) error {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		if err == ErrNotFound {
			return err
		}
		return &PersistenceError{Op: "get record", Err: err}
	}

	if !patchNext {
		if err := s.store.Delete(ctx, id); err != nil {
			if err == ErrNotFound {
				return err
			}
			return &PersistenceError{Op: "delete record", Err: err}
		}
		s.invalidateDate(ctx, rec.Date)
		return nil
	}

	day, err := s.store.QueryDay(ctx, rec.Date, rec.MachineID)
	if err != nil {
		return &PersistenceError{Op: "query day", Err: err}
	}
	prev, next, _ := neighbors(day, rec.Hour)
	prevTotal := decimal.Zero
	if prev != nil {
		prevTotal = prev.CumulativeTotal
	}

	ops := []WriteOp{{Kind: WriteDelete, ID: id}}
	if next != nil {
		next.Amount = next.CumulativeTotal.Sub(prevTotal)
		next.LastUpdated = s.clock.Now()
		ops = append(ops, WriteOp{Kind: WriteUpdate, Record: next})
	}
	if err := s.store.BatchWrite(ctx, ops); err != nil {
		return &PersistenceError{Op: "delete and patch next", Err: err}
	}

	s.invalidateDate(ctx, rec.Date)
	s.logger.Info("reading deleted",
		zap.String("record_id", id),
		zap.String("date", rec.Date),
		zap.Bool("patched_next", next != nil),
	)
	return nil
}

// ListDay returns every record of the date across machines, ordered by
// machine then hour, reading through the cache.
func (s *Service) ListDay(ctx context.Context, date string) ([]*SaleRecord, error) {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return nil, validationf("malformed date %q", date)
	}

	key := "sales:" + date
	var cached []*SaleRecord
	if found, err := s.cache.Get(ctx, key, &cached); err != nil {
		s.logger.Warn("cache read failed, falling through", zap.String("key", key), zap.Error(err))
	} else if found {
		return cached, nil
	}

	records, err := s.store.QueryDay(ctx, date, "")
	if err != nil {
		return nil, &PersistenceError{Op: "query day", Err: err}
	}
	if err := s.cache.Set(ctx, key, records, s.cacheTTL); err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return records, nil
}

// ComputeDailyTotals aggregates the date's amounts per machine. Hours without
// a record contribute zero. Pure aggregation, no mutation.
func (s *Service) ComputeDailyTotals(ctx context.Context, date string) (map[string]*DailyTotals, error) {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return nil, validationf("malformed date %q", date)
	}

	key := "totals:" + date
	var cached map[string]*DailyTotals
	if found, err := s.cache.Get(ctx, key, &cached); err != nil {
		s.logger.Warn("cache read failed, falling through", zap.String("key", key), zap.Error(err))
	} else if found {
		return cached, nil
	}

	records, err := s.store.QueryDay(ctx, date, "")
	if err != nil {
		return nil, &PersistenceError{Op: "query day", Err: err}
	}

	totals := map[string]*DailyTotals{}
	for _, r := range records {
		t, ok := totals[r.MachineID]
		if !ok {
			t = &DailyTotals{MachineID: r.MachineID}
			totals[r.MachineID] = t
		}
		t.Hourly[r.Hour] = r.Amount
		t.Total = t.Total.Add(r.Amount)
	}

	if err := s.cache.Set(ctx, key, totals, s.cacheTTL); err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return totals, nil
}

// ImportReadings applies bulk rows in order, replacing occupied slots, and
// clears the whole cache afterwards. Returns how many rows were applied; on
// error the count tells the caller where the import stopped.
func (s *Service) ImportReadings(ctx context.Context, rows []ImportRow) (int, error) {
	applied := 0
	for _, row := range rows {
		if _, err := s.RecordReading(ctx, row.Date, row.MachineID, row.Hour, row.CumulativeTotal, row.Metadata, true); err != nil {
			s.invalidateAll(ctx)
			return applied, err
		}
		applied++
	}
	s.invalidateAll(ctx)
	return applied, nil
}

// CacheStats exposes the cache counters for the observability endpoint.
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// cascade walks the day's records in ascending hour order and rewrites every
// amount that no longer matches its predecessor's total. Persisting ascending
// and sequentially means a crash partway leaves a consistent prefix and a
// stale suffix, never a scrambled day. Running it twice changes nothing.
func (s *Service) cascade(ctx context.Context, day []*SaleRecord) error {
	prev := decimal.Zero
	var pending []*SaleRecord
	for _, r := range day {
		want := r.CumulativeTotal.Sub(prev)
		if !r.Amount.Equal(want) {
			r.Amount = want
			r.LastUpdated = s.clock.Now()
			pending = append(pending, r)
		}
		prev = r.CumulativeTotal
	}
	for i, r := range pending {
		if err := s.store.Update(ctx, r); err != nil {
			s.logger.Error("cascade write failed",
				zap.String("record_id", r.ID),
				zap.Int("applied", i),
				zap.Int("total", len(pending)),
				zap.Error(err),
			)
			return &CascadeError{Applied: i, Total: len(pending), Err: err}
		}
	}
	return nil
}

// rejectFuture fails with ValidationError when (date, hour) is strictly after
// the current business time. Hour h is the period ending at h:00, so the
// current hour is already recordable.
func (s *Service) rejectFuture(date string, hour int) error {
	now := s.clock.Now()
	today := now.Format(DateLayout)
	if date > today {
		return validationf("date %s is in the future", date)
	}
	if date == today && hour > now.Hour() {
		return validationf("hour %d is in the future", hour)
	}
	return nil
}

func (s *Service) invalidateDate(ctx context.Context, date string) {
	if err := s.cache.InvalidatePrefix(ctx, "sales:"+date); err != nil {
		s.logger.Warn("cache invalidation failed", zap.String("date", date), zap.Error(err))
	}
	if err := s.cache.InvalidatePrefix(ctx, "totals:"+date); err != nil {
		s.logger.Warn("cache invalidation failed", zap.String("date", date), zap.Error(err))
	}
}

func (s *Service) invalidateAll(ctx context.Context) {
	if err := s.cache.InvalidateAll(ctx); err != nil {
		s.logger.Warn("cache clear failed", zap.Error(err))
	}
}

// neighbors resolves, within one machine's hour-ordered day, the nearest
// record below the hour, the nearest above, and the record occupying the hour
// itself (each nil when absent).
func neighbors(day []*SaleRecord, hour int) (prev, next, at *SaleRecord) {
	for _, r := range day {
		switch {
		case r.Hour < hour:
			if prev == nil || r.Hour > prev.Hour {
				prev = r
			}
		case r.Hour > hour:
			if next == nil || r.Hour < next.Hour {
				next = r
			}
		default:
			at = r
		}
	}
	return prev, next, at
}

// spliceByHour replaces the slot for rec's hour, or inserts it keeping hour
// order.
func spliceByHour(day []*SaleRecord, rec *SaleRecord) []*SaleRecord {
	out := make([]*SaleRecord, 0, len(day)+1)
	inserted := false
	for _, r := range day {
		if r.Hour == rec.Hour {
			continue
		}
		if !inserted && r.Hour > rec.Hour {
			out = append(out, rec)
			inserted = true
		}
		out = append(out, r)
	}
	if !inserted {
		out = append(out, rec)
	}
	return out
}
