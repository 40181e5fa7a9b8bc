package models

import "github.com/google/uuid"

type RoadMarkingAttrs struct {
	Color             RoadMarkingColor  `json:"color" gorm:"size:16"`
	ArrowDirection    *ArrowDirection   `json:"arrow_direction"`
	LineDirection     LineDirection     `json:"line_direction" gorm:"size:16"`
	Value             string            `json:"value" gorm:"size:254"`
	Size              string            `json:"size" gorm:"size:254"`
	Material          string            `json:"material" gorm:"size:254"`
	IsGrinded         bool              `json:"is_grinded"`
	IsRaised          bool              `json:"is_raised"`
	Amount            string            `json:"amount" gorm:"size:254"`
	Length            *float64          `json:"length"`
	Width             *float64          `json:"width"`
	SymbolText        string            `json:"symbol_text" gorm:"size:254"`
	LocationSpecifier LocationSpecifier `json:"location_specifier" gorm:"size:16"`
	RoadName          string            `json:"road_name" gorm:"size:254"`
	LaneNumber        string            `json:"lane_number" gorm:"size:8"`
	LaneType          string            `json:"lane_type" gorm:"size:32"`
}

type RoadMarkingPlan struct {
	DeviceBase
	PlanLink
	RoadMarkingAttrs
	TrafficSignPlanID *uuid.UUID `json:"traffic_sign_plan" gorm:"type:uuid"`
}

func (RoadMarkingPlan) Kind() Kind        { return RoadMarkingPlanKind }
func (RoadMarkingPlan) TableName() string { return RoadMarkingPlanKind.Table() }

type RoadMarkingReal struct {
	DeviceBase
	RealFields
	RoadMarkingAttrs
	TrafficSignRealID *uuid.UUID `json:"traffic_sign_real" gorm:"type:uuid"`
}

func (RoadMarkingReal) Kind() Kind        { return RoadMarkingRealKind }
func (RoadMarkingReal) TableName() string { return RoadMarkingRealKind.Table() }
