package models

import "github.com/google/uuid"

type SignpostAttrs struct {
	Txt               string            `json:"txt" gorm:"size:254"`
	Value             *float64          `json:"value"`
	Height            *int              `json:"height"`
	Size              Size              `json:"size" gorm:"size:1"`
	Reflection        Reflection        `json:"reflection_class" gorm:"column:reflection_class;size:2"`
	Color             SignColor         `json:"color" gorm:"size:16"`
	Order             int               `json:"order" gorm:"column:order_index;default:1"`
	LocationSpecifier LocationSpecifier `json:"location_specifier" gorm:"size:16"`
	LaneNumber        string            `json:"lane_number" gorm:"size:8"`
	LaneType          string            `json:"lane_type" gorm:"size:32"`
}

type SignpostPlan struct {
	DeviceBase
	PlanLink
	SignpostAttrs
	ParentID    *uuid.UUID `json:"parent" gorm:"type:uuid;index"`
	MountPlanID *uuid.UUID `json:"mount_plan" gorm:"type:uuid"`
}

func (SignpostPlan) Kind() Kind        { return SignpostPlanKind }
func (SignpostPlan) TableName() string { return SignpostPlanKind.Table() }

type SignpostReal struct {
	DeviceBase
	RealFields
	SignpostAttrs
	ParentID    *uuid.UUID `json:"parent" gorm:"type:uuid;index"`
	MountRealID *uuid.UUID `json:"mount_real" gorm:"type:uuid"`
}

func (SignpostReal) Kind() Kind        { return SignpostRealKind }
func (SignpostReal) TableName() string { return SignpostRealKind.Table() }
