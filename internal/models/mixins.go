package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"infra-registry/internal/geometry"
)

// UserAudit records who touched a row and when. User references survive
// user deletion.
type UserAudit struct {
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
	CreatedByID *uuid.UUID `json:"created_by" gorm:"type:uuid"`
	UpdatedByID *uuid.UUID `json:"updated_by" gorm:"type:uuid"`
}

// SoftDelete marks logically deleted rows. Default queries filter on
// is_active = true.
type SoftDelete struct {
	IsActive    bool       `json:"is_active" gorm:"not null;default:true;index"`
	DeletedAt   *time.Time `json:"deleted_at"`
	DeletedByID *uuid.UUID `json:"deleted_by" gorm:"type:uuid"`
}

// SourceIdentity is the external identifier pair used by importers. When
// both are set the pair is unique among active rows of one table.
type SourceIdentity struct {
	SourceName string `json:"source_name" gorm:"size:254"`
	SourceID   string `json:"source_id" gorm:"size:64"`
}

func (s SourceIdentity) HasSource() bool { return s.SourceName != "" && s.SourceID != "" }

type Ownership struct {
	OwnerID             uuid.UUID  `json:"owner" gorm:"type:uuid;not null;index"`
	ResponsibleEntityID *uuid.UUID `json:"responsible_entity" gorm:"type:uuid;index"`
	Lifecycle           Lifecycle  `json:"lifecycle" gorm:"size:32;not null;default:'ACTIVE'"`
}

type Validity struct {
	ValidityPeriodStart         *Date `json:"validity_period_start" gorm:"type:date"`
	ValidityPeriodEnd           *Date `json:"validity_period_end" gorm:"type:date"`
	SeasonalValidityPeriodStart *Date `json:"seasonal_validity_period_start" gorm:"type:date"`
	SeasonalValidityPeriodEnd   *Date `json:"seasonal_validity_period_end" gorm:"type:date"`
}

// DeviceBase is embedded by every planned and realized device.
type DeviceBase struct {
	ID uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserAudit
	SoftDelete
	SourceIdentity
	Ownership
	Validity

	Location              geometry.Geometry `json:"location" gorm:"type:geometry(GeometryZ,3879)" swaggertype:"string"`
	DeviceTypeID          *uuid.UUID        `json:"device_type" gorm:"type:uuid;index"`
	MountTypeID           *uuid.UUID        `json:"mount_type" gorm:"type:uuid"`
	Direction             int               `json:"direction"`
	ContentS              datatypes.JSON    `json:"content_s" gorm:"type:jsonb" swaggertype:"object"`
	AdditionalInformation string            `json:"additional_information"`
}

// Core gives generic code access to the shared columns.
func (b *DeviceBase) Core() *DeviceBase { return b }

// PlanLink is embedded by planned devices. Replaces and ReplacedBy are
// populated from device_replacements, not stored on the row.
type PlanLink struct {
	PlanID     *uuid.UUID `json:"plan" gorm:"type:uuid;index"`
	Replaces   *uuid.UUID `json:"replaces" gorm:"-"`
	ReplacedBy *uuid.UUID `json:"replaced_by" gorm:"-"`
}

func (p *PlanLink) Planned() *PlanLink { return p }

// RealFields is embedded by realized devices.
type RealFields struct {
	DevicePlanID       *uuid.UUID         `json:"device_plan" gorm:"type:uuid"`
	ScannedAt          *time.Time         `json:"scanned_at"`
	InstallationDate   *Date              `json:"installation_date" gorm:"type:date"`
	InstallationStatus InstallationStatus `json:"installation_status" gorm:"size:32"`
	Condition          Condition          `json:"condition" gorm:"size:16"`
	Manufacturer       string             `json:"manufacturer" gorm:"size:254"`
	RFID               string             `json:"rfid" gorm:"column:rfid;size:254"`
	LegacyCode         string             `json:"legacy_code" gorm:"size:32"`
	PermitDecisionID   string             `json:"permit_decision_id" gorm:"size:254"`
}

func (r *RealFields) Realized() *RealFields { return r }
