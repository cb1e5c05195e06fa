package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the business-date format used everywhere a day is keyed.
const DateLayout = "2006-01-02"

// SaleRecord is one cumulative meter reading for a machine, taken at the end
// of an hourly period. Hour h labels the period (h-1):00–h:00; hour 0 is the
// 23:00–00:00 period. Amount is always derived, never entered directly.
type SaleRecord struct {
	ID              string          `json:"id"`
	Date            string          `json:"date"`
	Hour            int             `json:"hour"`
	MachineID       string          `json:"machine_id"`
	CumulativeTotal decimal.Decimal `json:"cumulative_total"`
	Amount          decimal.Decimal `json:"amount"`
	OperatorID      string          `json:"operator_id,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	LastUpdated     time.Time       `json:"last_updated"`
}

// PeriodLabel returns the human label of the hourly period this record covers,
// e.g. hour 10 -> "09:00–10:00", hour 0 -> "23:00–00:00".
func (r *SaleRecord) PeriodLabel() string {
	start := r.Hour - 1
	if r.Hour == 0 {
		start = 23
	}
	return fmt.Sprintf("%02d:00–%02d:00", start, r.Hour)
}

// DailyTotals is the per-machine aggregation for one business date. Hourly has
// one slot per hour of the day; hours without a record contribute zero.
type DailyTotals struct {
	MachineID string              `json:"machine_id"`
	Hourly    [24]decimal.Decimal `json:"hourly"`
	Total     decimal.Decimal     `json:"total"`
}

// Metadata carries the descriptive fields an operator may attach to a reading.
type Metadata struct {
	OperatorID string
	Notes      string
}

// ImportRow is one line of a bulk import.
type ImportRow struct {
	Date            string
	MachineID       string
	Hour            int
	CumulativeTotal decimal.Decimal
	Metadata        Metadata
}
