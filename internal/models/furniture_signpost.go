package models

import "github.com/google/uuid"

type FurnitureSignpostAttrs struct {
	LocationNameFi string          `json:"location_name_fi" gorm:"size:128"`
	LocationNameSw string          `json:"location_name_sw" gorm:"size:128"`
	LocationNameEn string          `json:"location_name_en" gorm:"size:128"`
	Pictogram      string          `json:"pictogram" gorm:"size:128"`
	ArrowDirection *ArrowDirection `json:"arrow_direction"`
	Color          string          `json:"color_code" gorm:"column:color_code;size:16"`
	Order          int             `json:"order" gorm:"column:order_index;default:1"`
	Size           string          `json:"size" gorm:"size:32"`
}

type FurnitureSignpostPlan struct {
	DeviceBase
	PlanLink
	FurnitureSignpostAttrs
	ParentID *uuid.UUID `json:"parent" gorm:"type:uuid;index"`
}

func (FurnitureSignpostPlan) Kind() Kind        { return FurnitureSignpostPlanKind }
func (FurnitureSignpostPlan) TableName() string { return FurnitureSignpostPlanKind.Table() }

type FurnitureSignpostReal struct {
	DeviceBase
	RealFields
	FurnitureSignpostAttrs
	ParentID *uuid.UUID `json:"parent" gorm:"type:uuid;index"`
}

func (FurnitureSignpostReal) Kind() Kind        { return FurnitureSignpostRealKind }
func (FurnitureSignpostReal) TableName() string { return FurnitureSignpostRealKind.Table() }
