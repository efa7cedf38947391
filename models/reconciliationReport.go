package models

import "time"

// ReconciliationReport records one drift found by a reconciliation run.
type ReconciliationReport struct {
	ID             int       `gorm:"primary_key" json:"id"`
	OrganizationId string    `gorm:"size:64;index;not null" json:"organization_id"`
	CheckType      string    `gorm:"size:50;index;not null" json:"check_type"`  // e.g. LEDGER_QUANTITY
	EntityType     string    `gorm:"size:50;index;not null" json:"entity_type"` // e.g. Product
	EntityId       int       `gorm:"index;not null" json:"entity_id"`
	Details        string    `gorm:"type:text" json:"details"`
	CorrelationId  string    `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}
