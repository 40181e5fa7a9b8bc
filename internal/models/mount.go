package models

// MountAttrs describes poles, portals and walls that carry signs and lights.
// The mount type lives on DeviceBase.
type MountAttrs struct {
	Height            *float64          `json:"height"`
	Diameter          *float64          `json:"diameter"`
	CrossBarLength    *float64          `json:"cross_bar_length"`
	Material          string            `json:"material" gorm:"size:254"`
	IsFoldable        bool              `json:"is_foldable"`
	Electric          bool              `json:"electric_accountable"`
	LocationSpecifier LocationSpecifier `json:"location_specifier" gorm:"size:16"`
	Txt               string            `json:"txt" gorm:"size:254"`
}

type MountPlan struct {
	DeviceBase
	PlanLink
	MountAttrs
}

func (MountPlan) Kind() Kind        { return MountPlanKind }
func (MountPlan) TableName() string { return MountPlanKind.Table() }

type MountReal struct {
	DeviceBase
	RealFields
	MountAttrs
}

func (MountReal) Kind() Kind        { return MountRealKind }
func (MountReal) TableName() string { return MountRealKind.Table() }
