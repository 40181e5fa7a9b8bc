package models

import (
	"github.com/google/uuid"
)

// DeviceFile is the metadata of an attachment stored in object storage.
// Kind and DeviceID identify the owning device row.
type DeviceFile struct {
	ID               uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Kind             string    `json:"kind" gorm:"size:64;not null;index:idx_device_files_owner"`
	DeviceID         uuid.UUID `json:"device_id" gorm:"type:uuid;not null;index:idx_device_files_owner"`
	OriginalFilename string    `json:"original_filename" gorm:"size:254"`
	ContentType      string    `json:"content_type" gorm:"size:128"`
	Size             int64     `json:"size"`
	StorageKey       string    `json:"storage_key" gorm:"size:1024;not null"`
	IsPublic         bool      `json:"is_public" gorm:"not null;default:true"`
	UserAudit
}

// DeviceOperation is an entry in the maintenance log of a real device.
type DeviceOperation struct {
	ID              uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Kind            string         `json:"kind" gorm:"size:64;not null;index:idx_device_operations_owner"`
	DeviceID        uuid.UUID      `json:"device_id" gorm:"type:uuid;not null;index:idx_device_operations_owner"`
	OperationDate   Date           `json:"operation_date" gorm:"type:date;not null"`
	OperationTypeID uuid.UUID      `json:"operation_type" gorm:"type:uuid;not null"`
	OperationType   *OperationType `json:"-" gorm:"foreignKey:OperationTypeID"`
	UserAudit
}

// DeviceReplacement is one edge of a replacement chain between planned
// devices of the same kind. Both ends are unique per kind.
type DeviceReplacement struct {
	ID    uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Kind  string    `json:"kind" gorm:"size:64;not null;uniqueIndex:idx_replacement_old,priority:1;uniqueIndex:idx_replacement_new,priority:1"`
	OldID uuid.UUID `json:"old" gorm:"type:uuid;not null;uniqueIndex:idx_replacement_old,priority:2"`
	NewID uuid.UUID `json:"new" gorm:"type:uuid;not null;uniqueIndex:idx_replacement_new,priority:2"`
	UserAudit
}
