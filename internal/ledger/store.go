package ledger

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrEmptyID is returned when trying to store a record with an empty ID.
var ErrEmptyID = errors.New("empty record ID")

// WriteKind discriminates the operations a BatchWrite can carry.
type WriteKind int

const (
	WriteCreate WriteKind = iota
	WriteUpdate
	WriteDelete
)

// WriteOp is one element of a batch. Record is required for create/update,
// ID for update/delete.
type WriteOp struct {
	Kind   WriteKind
	ID     string
	Record *SaleRecord
}

// Store is the main interface for the ledger's storage layer. QueryDay returns
// the day's records ordered by hour; machineID may be empty to mean all
// machines. BatchWrite applies operations sequentially in the given order; it
// is best-effort grouping, not an atomic multi-record commit.
type Store interface {
	QueryDay(ctx context.Context, date, machineID string) ([]*SaleRecord, error)
	Get(ctx context.Context, id string) (*SaleRecord, error)
	Create(ctx context.Context, rec *SaleRecord) error
	Update(ctx context.Context, rec *SaleRecord) error
	Delete(ctx context.Context, id string) error
	BatchWrite(ctx context.Context, ops []WriteOp) error
}

// LocalStore provides an in-memory implementation for storing sale records.
type LocalStore struct {
	mu sync.RWMutex
	m  map[string]*SaleRecord
}

// NewLocalStore instantiates a new LocalStore with an empty map.
func NewLocalStore() *LocalStore {
	return &LocalStore{
		m: map[string]*SaleRecord{},
	}
}

// QueryDay returns copies of the matching records sorted by hour.
func (l *LocalStore) QueryDay(_ context.Context, date, machineID string) ([]*SaleRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	records := make([]*SaleRecord, 0)
	for _, r := range l.m {
		if r.Date != date {
			continue
		}
		if machineID != "" && r.MachineID != machineID {
			continue
		}
		cp := *r
		records = append(records, &cp)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].MachineID != records[j].MachineID {
			return records[i].MachineID < records[j].MachineID
		}
		return records[i].Hour < records[j].Hour
	})
	return records, nil
}

// Get retrieves a record by ID. Returns ErrNotFound if it does not exist.
func (l *LocalStore) Get(_ context.Context, id string) (*SaleRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	r, ok := l.m[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

// Create stores a new record. Returns ErrEmptyID if the record has no ID.
func (l *LocalStore) Create(_ context.Context, rec *SaleRecord) error {
	if rec.ID == "" {
		return ErrEmptyID
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	cp := *rec
	l.m[rec.ID] = &cp
	return nil
}

// Update overwrites an existing record. Returns ErrNotFound if it does not exist.
func (l *LocalStore) Update(_ context.Context, rec *SaleRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.m[rec.ID]; !ok {
		return ErrNotFound
	}
	cp := *rec
	l.m[rec.ID] = &cp
	return nil
}

// Delete removes a record. Returns ErrNotFound if it does not exist.
func (l *LocalStore) Delete(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.m[id]; !ok {
		return ErrNotFound
	}
	delete(l.m, id)
	return nil
}

// BatchWrite applies the operations one by one, stopping at the first failure.
func (l *LocalStore) BatchWrite(ctx context.Context, ops []WriteOp) error {
	for _, op := range ops {
		var err error
		switch op.Kind {
		case WriteCreate:
			err = l.Create(ctx, op.Record)
		case WriteUpdate:
			err = l.Update(ctx, op.Record)
		case WriteDelete:
			err = l.Delete(ctx, op.ID)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
