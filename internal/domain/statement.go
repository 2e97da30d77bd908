package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CardStatement aggregates one card's spend transactions for one calendar
// month. Utilization is nil when the card has no monthly limit.
type CardStatement struct {
	CardID       string           `json:"card_id"`
	Period       string           `json:"period"` // YYYY-MM
	PeriodStart  time.Time        `json:"period_start"`
	PeriodEnd    time.Time        `json:"period_end"`
	Transactions []*Transaction   `json:"transactions"`
	TotalSpend   decimal.Decimal  `json:"total_spend"`
	AverageSpend decimal.Decimal  `json:"average_spend"`
	Limit        *decimal.Decimal `json:"limit,omitempty"`
	Utilization  *decimal.Decimal `json:"utilization,omitempty"` // percent
}
