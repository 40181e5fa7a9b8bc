package models

import "github.com/google/uuid"

type TrafficSignAttrs struct {
	Value             *float64          `json:"value"`
	Txt               string            `json:"txt" gorm:"size:254"`
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

type TrafficSignPlan struct {
	DeviceBase
	PlanLink
	TrafficSignAttrs
	MountPlanID *uuid.UUID `json:"mount_plan" gorm:"type:uuid;index"`
}

func (TrafficSignPlan) Kind() Kind        { return TrafficSignPlanKind }
func (TrafficSignPlan) TableName() string { return TrafficSignPlanKind.Table() }

type TrafficSignReal struct {
	DeviceBase
	RealFields
	TrafficSignAttrs
	MountRealID *uuid.UUID `json:"mount_real" gorm:"type:uuid;index"`
}

func (TrafficSignReal) Kind() Kind        { return TrafficSignRealKind }
func (TrafficSignReal) TableName() string { return TrafficSignRealKind.Table() }
