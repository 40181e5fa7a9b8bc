package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// TargetModel restricts a device type to one family. Empty means any.
type TargetModel string

const (
	TargetNone           TargetModel = ""
	TargetBarrier        TargetModel = TargetModel(FamilyBarrier)
	TargetRoadMarking    TargetModel = TargetModel(FamilyRoadMarking)
	TargetSignpost       TargetModel = TargetModel(FamilySignpost)
	TargetTrafficLight   TargetModel = TargetModel(FamilyTrafficLight)
	TargetTrafficSign    TargetModel = TargetModel(FamilyTrafficSign)
	TargetAdditionalSign TargetModel = TargetModel(FamilyAdditionalSign)
)

func (t TargetModel) Valid() bool {
	switch t {
	case TargetBarrier, TargetRoadMarking, TargetSignpost, TargetTrafficLight, TargetTrafficSign, TargetAdditionalSign:
		return true
	}
	return false
}

// Allows reports whether devices of family f may reference the type.
func (t TargetModel) Allows(f Family) bool {
	return t == TargetNone || Family(t) == f
}

// DeviceType is an entry of the traffic control device catalog.
type DeviceType struct {
	ID                uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Code              string          `json:"code" gorm:"size:32;not null;uniqueIndex"`
	Description       string          `json:"description" gorm:"size:254"`
	TargetModel       TargetModel     `json:"target_model" gorm:"size:32"`
	Value             *float64        `json:"value"`
	Unit              string          `json:"unit" gorm:"size:50"`
	Size              string          `json:"size" gorm:"size:50"`
	LegacyCode        string          `json:"legacy_code" gorm:"size:32;index"`
	LegacyDescription string          `json:"legacy_description" gorm:"size:254"`
	ContentSchema     datatypes.JSON  `json:"content_schema" gorm:"type:jsonb" swaggertype:"object"`
	IconID            *uuid.UUID      `json:"icon" gorm:"type:uuid"`
	Icon              *DeviceTypeIcon `json:"-" gorm:"foreignKey:IconID"`
	CreatedAt         time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt         time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

// HasSchema reports whether the type carries a content schema.
func (d *DeviceType) HasSchema() bool {
	s := string(d.ContentSchema)
	return s != "" && s != "null"
}

// DeviceTypeIcon is an SVG in object storage. File is the stem shared by
// the SVG and its PNG derivatives.
type DeviceTypeIcon struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	File      string    `json:"file" gorm:"size:254;not null;uniqueIndex"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

type MountType struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Code          string    `json:"code" gorm:"size:128;not null;uniqueIndex"`
	Description   string    `json:"description" gorm:"size:254"`
	DescriptionFi string    `json:"description_fi" gorm:"size:254"`
}

type OperationType struct {
	ID   uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name string    `json:"name" gorm:"size:200;not null;uniqueIndex"`
}
