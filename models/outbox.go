package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/crm_backend/config"
	"bitbucket.org/mmdatafocus/crm_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Publish statuses for CrmEventRecord.PublishStatus.
// Keep these as strings (DB values).
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// CrmEventRecord is the transactional outbox row for CRM lifecycle events.
// Rows are written inside the same DB transaction as the state change they
// describe; the dispatcher publishes them to Pub/Sub after commit.
type CrmEventRecord struct {
	ID            int                   `gorm:"primary_key;index:idx_crm_outbox_dispatch,priority:3" json:"id"`
	BusinessId    string                `gorm:"size:64;not null;index" json:"business_id"`
	OccurredAt    time.Time             `gorm:"index;not null" json:"occurred_at"`
	ReferenceId   int                   `json:"reference_id"`
	ReferenceType CrmEventReferenceType `gorm:"type:enum('FUT','ASG','DVB','ACC')" json:"reference_type"`
	Action        CrmEventAction        `gorm:"type:enum('C','U','D')" json:"action"`
	OldObj        []byte                `gorm:"type:blob" json:"old_obj"`
	NewObj        []byte                `gorm:"type:blob" json:"new_obj"`

	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_crm_outbox_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_crm_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`

	CorrelationId string    `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// PublishCrmEvent writes the event row inside the caller's DB transaction but
// does NOT publish to Pub/Sub. Publishing is performed asynchronously by the
// outbox dispatcher after commit.
func PublishCrmEvent(ctx context.Context, db *gorm.DB, businessId string, occurredAt time.Time, refId int, refType CrmEventReferenceType, obj interface{}, oldObj interface{}, action CrmEventAction) error {

	var objInByte []byte
	var oldObjInByte []byte
	var err error

	if action == CrmEventActionCreate || action == CrmEventActionUpdate {
		objInByte, err = json.Marshal(obj)
		if err != nil {
			return err
		}
	}
	if action == CrmEventActionUpdate || action == CrmEventActionDelete {
		oldObjInByte, err = json.Marshal(oldObj)
		if err != nil {
			return err
		}
	}

	record := CrmEventRecord{
		BusinessId:    businessId,
		OccurredAt:    occurredAt,
		ReferenceId:   refId,
		ReferenceType: refType,
		Action:        action,
		NewObj:        objInByte,
		OldObj:        oldObjInByte,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return db.Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

func ConvertToCrmEventMessage(record CrmEventRecord) config.CrmEventMessage {
	return config.CrmEventMessage{
		ID:            record.ID,
		BusinessId:    record.BusinessId,
		OccurredAt:    record.OccurredAt,
		ReferenceId:   record.ReferenceId,
		ReferenceType: string(record.ReferenceType),
		Action:        string(record.Action),
		OldObj:        record.OldObj,
		NewObj:        record.NewObj,
		CorrelationId: record.CorrelationId,
	}
}
