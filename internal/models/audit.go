package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type AuditAction string

const (
	AuditCreate     AuditAction = "create"
	AuditUpdate     AuditAction = "update"
	AuditSoftDelete AuditAction = "soft_delete"
)

// AuditLog is written in the same transaction as the change it records.
type AuditLog struct {
	ID          uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ContentType string         `json:"content_type" gorm:"size:64;not null;index:idx_audit_object"`
	ObjectID    uuid.UUID      `json:"object_id" gorm:"type:uuid;not null;index:idx_audit_object"`
	Action      AuditAction    `json:"action" gorm:"size:16;not null"`
	ActorID     *uuid.UUID     `json:"actor" gorm:"type:uuid"`
	Changes     datatypes.JSON `json:"changes" gorm:"type:jsonb"`
	Timestamp   time.Time      `json:"timestamp" gorm:"not null"`
}

func (AuditLog) TableName() string { return "audit_log" }
