package models

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/utils"
	"gorm.io/gorm"
)

func dbFromContext(ctx context.Context) *gorm.DB {
	return config.GetDB().WithContext(ctx)
}

// PublishInventoryEvent writes the outbox record inside the caller's transaction.
// Publishing to Pub/Sub is done by the outbox dispatcher after commit.
func PublishInventoryEvent(ctx context.Context, tx *gorm.DB, organizationId string, eventType string, refType string, refId int, obj interface{}) error {
	if !config.SaleOutboxEnabled() {
		return nil
	}
	payload, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	record := OutboxMessage{
		OrganizationId: organizationId,
		EventType:      eventType,
		ReferenceType:  refType,
		ReferenceId:    refId,
		Payload:        payload,
		OccurredAt:     time.Now().UTC(),
		PublishStatus:  OutboxPublishStatusPending,
		CorrelationId:  correlationIdFromContextOrNew(ctx),
	}
	return tx.Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// performedByFromContext prefers the username, then the user id.
func performedByFromContext(ctx context.Context) string {
	if v, ok := utils.GetUsernameFromContext(ctx); ok && v != "" {
		return v
	}
	if v, ok := utils.GetUserIdFromContext(ctx); ok && v > 0 {
		return fmt.Sprint(v)
	}
	return ""
}
