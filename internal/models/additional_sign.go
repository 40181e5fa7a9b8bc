package models

import "github.com/google/uuid"

// AdditionalSignAttrs holds the fields of a supplementary plate. Its text
// lives in content_s unless missing_content is set.
type AdditionalSignAttrs struct {
	Order             int               `json:"order" gorm:"column:order_index;default:1"`
	MissingContent    bool              `json:"missing_content"`
	Height            *int              `json:"height"`
	Size              Size              `json:"size" gorm:"size:1"`
	Reflection        Reflection        `json:"reflection_class" gorm:"column:reflection_class;size:2"`
	Surface           Surface           `json:"surface_class" gorm:"column:surface_class;size:8"`
	Color             SignColor         `json:"color" gorm:"size:16"`
	LocationSpecifier LocationSpecifier `json:"location_specifier" gorm:"size:16"`
	RoadName          string            `json:"road_name" gorm:"size:254"`
	LaneNumber        string            `json:"lane_number" gorm:"size:8"`
	LaneType          string            `json:"lane_type" gorm:"size:32"`
}

type AdditionalSignPlan struct {
	DeviceBase
	PlanLink
	AdditionalSignAttrs
	ParentID    *uuid.UUID `json:"parent" gorm:"type:uuid;index"`
	MountPlanID *uuid.UUID `json:"mount_plan" gorm:"type:uuid"`
}

func (AdditionalSignPlan) Kind() Kind        { return AdditionalSignPlanKind }
func (AdditionalSignPlan) TableName() string { return AdditionalSignPlanKind.Table() }

type AdditionalSignReal struct {
	DeviceBase
	RealFields
	AdditionalSignAttrs
	ParentID    *uuid.UUID `json:"parent" gorm:"type:uuid;index"`
	MountRealID *uuid.UUID `json:"mount_real" gorm:"type:uuid"`
}

func (AdditionalSignReal) Kind() Kind        { return AdditionalSignRealKind }
func (AdditionalSignReal) TableName() string { return AdditionalSignRealKind.Table() }

// Attributes gives generic code access to the additional-sign fields of
// either variant.
func (a *AdditionalSignAttrs) Attributes() *AdditionalSignAttrs { return a }
