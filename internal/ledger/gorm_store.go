package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type saleRecordRow struct {
	ID              string          `gorm:"primaryKey;size:36"`
	Date            string          `gorm:"size:10;index:idx_machine_day,priority:1"`
	MachineID       string          `gorm:"size:16;index:idx_machine_day,priority:2"`
	Hour            int             `gorm:"index:idx_machine_day,priority:3"`
	CumulativeTotal decimal.Decimal `gorm:"type:decimal(14,2)"`
	Amount          decimal.Decimal `gorm:"type:decimal(14,2)"`
	OperatorID      string          `gorm:"size:64"`
	Notes           string          `gorm:"size:512"`
	LastUpdated     time.Time
}

func (saleRecordRow) TableName() string { return "sale_records" }

func (r *saleRecordRow) toRecord() *SaleRecord {
	return &SaleRecord{
		ID:              r.ID,
		Date:            r.Date,
		Hour:            r.Hour,
		MachineID:       r.MachineID,
		CumulativeTotal: r.CumulativeTotal,
		Amount:          r.Amount,
		OperatorID:      r.OperatorID,
		Notes:           r.Notes,
		LastUpdated:     r.LastUpdated,
	}
}

func toRow(rec *SaleRecord) *saleRecordRow {
	return &saleRecordRow{
		ID:              rec.ID,
		Date:            rec.Date,
		Hour:            rec.Hour,
		MachineID:       rec.MachineID,
		CumulativeTotal: rec.CumulativeTotal,
		Amount:          rec.Amount,
		OperatorID:      rec.OperatorID,
		Notes:           rec.Notes,
		LastUpdated:     rec.LastUpdated,
	}
}

// GormStore persists sale records in MySQL through gorm. It implements the
// same Store contract as LocalStore.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore migrates the sale_records table and returns the store.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&saleRecordRow{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func (g *GormStore) QueryDay(ctx context.Context, date, machineID string) ([]*SaleRecord, error) {
	q := g.db.WithContext(ctx).Where("date = ?", date)
	if machineID != "" {
		q = q.Where("machine_id = ?", machineID)
	}
	var rows []saleRecordRow
	if err := q.Order("machine_id asc, hour asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	records := make([]*SaleRecord, 0, len(rows))
	for i := range rows {
		records = append(records, rows[i].toRecord())
	}
	return records, nil
}

func (g *GormStore) Get(ctx context.Context, id string) (*SaleRecord, error) {
	var row saleRecordRow
	if err := g.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return row.toRecord(), nil
}

func (g *GormStore) Create(ctx context.Context, rec *SaleRecord) error {
	if rec.ID == "" {
		return ErrEmptyID
	}
	return g.db.WithContext(ctx).Create(toRow(rec)).Error
}

func (g *GormStore) Update(ctx context.Context, rec *SaleRecord) error {
	// Select("*") so zero-valued fields (an amount of 0 is legal) still write.
	res := g.db.WithContext(ctx).Model(&saleRecordRow{}).Where("id = ?", rec.ID).Select("*").Updates(toRow(rec))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (g *GormStore) Delete(ctx context.Context, id string) error {
	res := g.db.WithContext(ctx).Delete(&saleRecordRow{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// BatchWrite applies the operations in order inside one transaction.
func (g *GormStore) BatchWrite(ctx context.Context, ops []WriteOp) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inner := &GormStore{db: tx}
		for _, op := range ops {
			var err error
			switch op.Kind {
			case WriteCreate:
				err = inner.Create(ctx, op.Record)
			case WriteUpdate:
				err = inner.Update(ctx, op.Record)
			case WriteDelete:
				err = inner.Delete(ctx, op.ID)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}
