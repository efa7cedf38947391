package models

import "time"

const handlerCreateSale = "CreateSale"

// IdempotencyKey remembers the document produced for a client-supplied Idempotency-Key.
// Unique constraint: (organization_id, handler_name, message_id).
type IdempotencyKey struct {
	ID             int       `gorm:"primary_key" json:"id"`
	OrganizationId string    `gorm:"size:64;not null;uniqueIndex:uniq_idem,priority:1" json:"organization_id"`
	HandlerName    string    `gorm:"size:100;not null;uniqueIndex:uniq_idem,priority:2" json:"handler_name"`
	MessageId      string    `gorm:"size:255;not null;uniqueIndex:uniq_idem,priority:3" json:"message_id"`
	ResultId       int       `gorm:"not null" json:"result_id"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}
