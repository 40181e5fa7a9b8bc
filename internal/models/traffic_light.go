package models

import "github.com/google/uuid"

type TrafficLightAttrs struct {
	Type               TrafficLightType  `json:"type" gorm:"size:32"`
	SoundBeacon        bool              `json:"sound_beacon"`
	PushButton         bool              `json:"push_button"`
	VehicleRecognition bool              `json:"vehicle_recognition"`
	Height             *int              `json:"height"`
	Txt                string            `json:"txt" gorm:"size:254"`
	LocationSpecifier  LocationSpecifier `json:"location_specifier" gorm:"size:16"`
	RoadName           string            `json:"road_name" gorm:"size:254"`
	LaneNumber         string            `json:"lane_number" gorm:"size:8"`
	LaneType           string            `json:"lane_type" gorm:"size:32"`
}

type TrafficLightPlan struct {
	DeviceBase
	PlanLink
	TrafficLightAttrs
	MountPlanID *uuid.UUID `json:"mount_plan" gorm:"type:uuid"`
}

func (TrafficLightPlan) Kind() Kind        { return TrafficLightPlanKind }
func (TrafficLightPlan) TableName() string { return TrafficLightPlanKind.Table() }

type TrafficLightReal struct {
	DeviceBase
	RealFields
	TrafficLightAttrs
	MountRealID *uuid.UUID `json:"mount_real" gorm:"type:uuid"`
}

func (TrafficLightReal) Kind() Kind        { return TrafficLightRealKind }
func (TrafficLightReal) TableName() string { return TrafficLightRealKind.Table() }
