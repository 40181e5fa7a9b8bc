package models

type BarrierAttrs struct {
	ConnectionType       ConnectionType    `json:"connection_type" gorm:"size:16"`
	Material             string            `json:"material" gorm:"size:64"`
	IsElectric           bool              `json:"is_electric"`
	ReflectiveStripColor string            `json:"reflective_strip_color" gorm:"size:32"`
	LocationSpecifier    LocationSpecifier `json:"location_specifier" gorm:"size:16"`
	RoadName             string            `json:"road_name" gorm:"size:254"`
	LaneNumber           string            `json:"lane_number" gorm:"size:8"`
	LaneType             string            `json:"lane_type" gorm:"size:32"`
	Length               *float64          `json:"length"`
	Txt                  string            `json:"txt" gorm:"size:254"`
}

type BarrierPlan struct {
	DeviceBase
	PlanLink
	BarrierAttrs
}

func (BarrierPlan) Kind() Kind        { return BarrierPlanKind }
func (BarrierPlan) TableName() string { return BarrierPlanKind.Table() }

type BarrierReal struct {
	DeviceBase
	RealFields
	BarrierAttrs
}

func (BarrierReal) Kind() Kind        { return BarrierRealKind }
func (BarrierReal) TableName() string { return BarrierRealKind.Table() }

