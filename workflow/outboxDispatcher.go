package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PublishFunc sends one event and returns the broker's message id.
type PublishFunc func(ctx context.Context, msg config.InventoryEventMessage) (string, error)

type OutboxDispatcher struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	Publish      PublishFunc
	DispatcherID string

	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func NewOutboxDispatcher(db *gorm.DB, logger *logrus.Logger) *OutboxDispatcher {
	return &OutboxDispatcher{
		DB:             db,
		Logger:         logger,
		Publish:        config.PublishInventoryEventWithResult,
		DispatcherID:   uuid.NewString(),
		BatchSize:      50,
		PollInterval:   500 * time.Millisecond,
		LockTimeout:    30 * time.Second,
		MaxAttempts:    20,
		InitialBackoff: 5 * time.Second,
		MaxBackoff:     10 * time.Minute,
	}
}

func (d *OutboxDispatcher) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.dispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

// claim marks up to BatchSize due messages PROCESSING for this dispatcher.
// Stale PROCESSING rows (a dispatcher died mid-batch) are reclaimed after LockTimeout.
func (d *OutboxDispatcher) claim(ctx context.Context, now time.Time) ([]models.OutboxMessage, error) {
	staleBefore := now.Add(-d.LockTimeout)
	var claimed []models.OutboxMessage
	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.
			Where(`
				(
					publish_status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
				)
				OR
				(
					publish_status = ? AND locked_at IS NOT NULL AND locked_at <= ?
				)
			`, []string{models.OutboxPublishStatusPending, models.OutboxPublishStatusFailed}, now, models.OutboxPublishStatusProcessing, staleBefore).
			Order("id ASC").
			Limit(d.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		for i := range claimed {
			if d.MaxAttempts > 0 && claimed[i].PublishAttempts >= d.MaxAttempts {
				msg := fmt.Sprintf("max publish attempts exceeded (%d)", d.MaxAttempts)
				claimed[i].PublishStatus = models.OutboxPublishStatusDead
				if err := tx.Model(&models.OutboxMessage{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
					"publish_status":     models.OutboxPublishStatusDead,
					"last_publish_error": &msg,
					"next_attempt_at":    nil,
					"locked_at":          nil,
					"locked_by":          nil,
				}).Error; err != nil {
					return err
				}
				continue
			}

			claimed[i].PublishStatus = models.OutboxPublishStatusProcessing
			claimed[i].LockedAt = &now
			claimed[i].LockedBy = &d.DispatcherID
			claimed[i].PublishAttempts++
			if err := tx.Model(&models.OutboxMessage{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
				"publish_status":     claimed[i].PublishStatus,
				"locked_at":          claimed[i].LockedAt,
				"locked_by":          claimed[i].LockedBy,
				"publish_attempts":   gorm.Expr("publish_attempts + 1"),
				"last_publish_error": nil,
				"next_attempt_at":    nil,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

func (d *OutboxDispatcher) dispatchOnce(ctx context.Context) {
	if d.DB == nil || d.Publish == nil {
		return
	}
	now := time.Now().UTC()
	claimed, err := d.claim(ctx, now)
	if err != nil {
		config.LogError(d.Logger, "outboxDispatcher.go", "dispatchOnce", "claim outbox messages", d.DispatcherID, err)
		return
	}

	for _, rec := range claimed {
		if rec.PublishStatus == models.OutboxPublishStatusDead {
			continue
		}
		pubID, pubErr := d.Publish(ctx, models.ConvertToInventoryEvent(rec))
		if pubErr != nil {
			d.markPublishFailed(ctx, rec, pubErr)
			continue
		}
		d.markPublishSent(ctx, rec.ID, pubID, now)
	}
}

func (d *OutboxDispatcher) markPublishSent(ctx context.Context, recordID int, pubsubMsgID string, now time.Time) {
	id := pubsubMsgID
	err := d.DB.WithContext(ctx).Model(&models.OutboxMessage{}).
		Where("id = ?", recordID).
		Updates(map[string]interface{}{
			"publish_status":     models.OutboxPublishStatusSent,
			"published_at":       &now,
			"pub_sub_message_id": &id,
			"locked_at":          nil,
			"locked_by":          nil,
			"next_attempt_at":    nil,
		}).Error
	if err != nil {
		config.LogError(d.Logger, "outboxDispatcher.go", "markPublishSent", "update outbox message", recordID, err)
	}
}

func (d *OutboxDispatcher) markPublishFailed(ctx context.Context, rec models.OutboxMessage, err error) {
	db := d.DB.WithContext(ctx)
	msg := err.Error()
	fields := logrus.Fields{
		"field":           "OutboxDispatcher",
		"organization_id": rec.OrganizationId,
		"record_id":       rec.ID,
		"event_type":      rec.EventType,
		"attempt":         rec.PublishAttempts,
	}

	if d.MaxAttempts > 0 && rec.PublishAttempts >= d.MaxAttempts {
		_ = db.Model(&models.OutboxMessage{}).
			Where("id = ?", rec.ID).
			Updates(map[string]interface{}{
				"publish_status":     models.OutboxPublishStatusDead,
				"last_publish_error": &msg,
				"next_attempt_at":    nil,
				"locked_at":          nil,
				"locked_by":          nil,
			}).Error
		if d.Logger != nil {
			d.Logger.WithFields(fields).Error("outbox publish moved to DEAD after max attempts: " + msg)
		}
		return
	}

	next := time.Now().UTC().Add(d.backoff(rec.PublishAttempts))
	_ = db.Model(&models.OutboxMessage{}).
		Where("id = ?", rec.ID).
		Updates(map[string]interface{}{
			"publish_status":     models.OutboxPublishStatusFailed,
			"last_publish_error": &msg,
			"next_attempt_at":    &next,
			"locked_at":          nil,
			"locked_by":          nil,
		}).Error
	if d.Logger != nil {
		fields["next_attempt_at"] = next.Format(time.RFC3339Nano)
		d.Logger.WithFields(fields).Error("outbox publish failed: " + msg)
	}
}

// backoff doubles InitialBackoff per failed attempt, capped at MaxBackoff.
func (d *OutboxDispatcher) backoff(attempt int) time.Duration {
	b := d.InitialBackoff
	for i := 1; i < attempt; i++ {
		b *= 2
		if d.MaxBackoff > 0 && b >= d.MaxBackoff {
			return d.MaxBackoff
		}
	}
	return b
}
