package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/utils"
	"gorm.io/gorm"
)

// Outbox publish statuses for OutboxMessage.PublishStatus.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// OutboxMessage is written in the same transaction as the document it announces.
type OutboxMessage struct {
	ID               int        `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	OrganizationId   string     `gorm:"size:64;not null;index" json:"organization_id"`
	EventType        string     `gorm:"size:50;not null" json:"event_type"`
	ReferenceType    string     `gorm:"size:50;not null;index:idx_outbox_reference,priority:1" json:"reference_type"`
	ReferenceId      int        `gorm:"not null;index:idx_outbox_reference,priority:2" json:"reference_id"`
	Payload          []byte     `gorm:"type:mediumblob" json:"payload"`
	OccurredAt       time.Time  `gorm:"not null" json:"occurred_at"`
	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"`
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func ConvertToInventoryEvent(record OutboxMessage) config.InventoryEventMessage {
	return config.InventoryEventMessage{
		ID:             record.ID,
		OrganizationId: record.OrganizationId,
		EventType:      record.EventType,
		ReferenceType:  record.ReferenceType,
		ReferenceId:    record.ReferenceId,
		OccurredAt:     record.OccurredAt,
		Payload:        record.Payload,
		CorrelationId:  record.CorrelationId,
	}
}

// ReplayOutbox puts a document's unsent or dead messages back in the dispatch queue.
func ReplayOutbox(ctx context.Context, referenceType string, referenceId int) ([]*OutboxMessage, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	db := dbFromContext(ctx)
	res := db.Model(&OutboxMessage{}).
		Where("organization_id = ? AND reference_type = ? AND reference_id = ? AND publish_status <> ?",
			organizationId, referenceType, referenceId, OutboxPublishStatusSent).
		Updates(map[string]interface{}{
			"locked_at":          nil,
			"locked_by":          nil,
			"publish_status":     OutboxPublishStatusPending,
			"publish_attempts":   0,
			"next_attempt_at":    nil,
			"last_publish_error": nil,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	var messages []*OutboxMessage
	err := db.Where("organization_id = ? AND reference_type = ? AND reference_id = ?", organizationId, referenceType, referenceId).
		Order("id ASC").
		Find(&messages).Error
	return messages, err
}
