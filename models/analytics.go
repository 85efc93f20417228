package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AnalyticsRow is one completed cut as returned by the analytics endpoint.
type AnalyticsRow struct {
	EntryID     string          `json:"entry_id"`
	ServiceName string          `json:"service_name"`
	Amount      decimal.Decimal `json:"amount"`
	Tip         decimal.Decimal `json:"tip"`
	IsVIPCut    bool            `json:"is_vip_cut"`
	CompletedAt time.Time       `json:"completed_at"`
}

type FeedbackEntry struct {
	ID           string    `json:"id"`
	CustomerName string    `json:"customer_name"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment"`
	CreatedAt    time.Time `json:"created_at"`
}
