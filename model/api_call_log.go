package model

import (
	"time"
)

// APICallLog is one row of the cost ledger: a single call to an external AI or search service.
// Costs are estimates recorded at call time, not reconciled against provider invoices.
type APICallLog struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
	Provider      string    `gorm:"type:varchar(50);not null;index:idx_provider_service" json:"provider"`
	Service       string    `gorm:"type:varchar(50);not null;index:idx_provider_service" json:"service"`
	EstimatedCost float64   `gorm:"default:0" json:"estimated_cost"`
}

// TableName specifies the table name for APICallLog
func (APICallLog) TableName() string {
	return "api_call_logs"
}
