package models

import (
	"strings"

	"infra-registry/internal/geometry"
)

// Family is a device family. Device-type target models use the same values.
type Family string

const (
	FamilyBarrier           Family = "barrier"
	FamilyRoadMarking       Family = "road_marking"
	FamilySignpost          Family = "signpost"
	FamilyMount             Family = "mount"
	FamilyTrafficLight      Family = "traffic_light"
	FamilyTrafficSign       Family = "traffic_sign"
	FamilyAdditionalSign    Family = "additional_sign"
	FamilyFurnitureSignpost Family = "furniture_signpost"
)

type Variant string

const (
	VariantPlan Variant = "plan"
	VariantReal Variant = "real"
)

// Kind identifies one device table, e.g. traffic_sign_plan.
type Kind struct {
	Family  Family
	Variant Variant
}

func (k Kind) String() string { return string(k.Family) + "_" + string(k.Variant) }

// Table is the database table of the kind.
func (k Kind) Table() string { return k.String() + "s" }

// Slug is the compact name used in URLs and WFS type names, e.g.
// "trafficsignplan".
func (k Kind) Slug() string { return strings.ReplaceAll(k.String(), "_", "") }

func (k Kind) IsPlan() bool { return k.Variant == VariantPlan }

// Counterpart returns the other variant of the same family.
func (k Kind) Counterpart() Kind {
	if k.Variant == VariantPlan {
		return Kind{k.Family, VariantReal}
	}
	return Kind{k.Family, VariantPlan}
}

// Device is implemented by all sixteen device models.
type Device interface {
	Core() *DeviceBase
	Kind() Kind
	TableName() string
}

// PlannedDevice is implemented by the plan variants.
type PlannedDevice interface {
	Device
	Planned() *PlanLink
}

// RealDevice is implemented by the real variants.
type RealDevice interface {
	Device
	Realized() *RealFields
}

// ParentRef is a column pointing at another device row.
type ParentRef struct {
	Column string
	Field  string
	Target Kind
}

// ChildRef is a column in another table pointing back at this kind; active
// children are soft-deleted together with their parent.
type ChildRef struct {
	Kind   Kind
	Column string
}

// KindInfo describes the per-kind rules generic code needs.
type KindInfo struct {
	Kind               Kind
	GeometryTypes      []geometry.Type
	DeviceTypeOptional bool
	HasMissingContent  bool
	Parents            []ParentRef
	Cascade            []ChildRef
}

var (
	BarrierPlanKind           = Kind{FamilyBarrier, VariantPlan}
	BarrierRealKind           = Kind{FamilyBarrier, VariantReal}
	RoadMarkingPlanKind       = Kind{FamilyRoadMarking, VariantPlan}
	RoadMarkingRealKind       = Kind{FamilyRoadMarking, VariantReal}
	SignpostPlanKind          = Kind{FamilySignpost, VariantPlan}
	SignpostRealKind          = Kind{FamilySignpost, VariantReal}
	MountPlanKind             = Kind{FamilyMount, VariantPlan}
	MountRealKind             = Kind{FamilyMount, VariantReal}
	TrafficLightPlanKind      = Kind{FamilyTrafficLight, VariantPlan}
	TrafficLightRealKind      = Kind{FamilyTrafficLight, VariantReal}
	TrafficSignPlanKind       = Kind{FamilyTrafficSign, VariantPlan}
	TrafficSignRealKind       = Kind{FamilyTrafficSign, VariantReal}
	AdditionalSignPlanKind    = Kind{FamilyAdditionalSign, VariantPlan}
	AdditionalSignRealKind    = Kind{FamilyAdditionalSign, VariantReal}
	FurnitureSignpostPlanKind = Kind{FamilyFurnitureSignpost, VariantPlan}
	FurnitureSignpostRealKind = Kind{FamilyFurnitureSignpost, VariantReal}
)

var (
	pointOnly = []geometry.Type{geometry.TypePoint}
	anyShape  = []geometry.Type{geometry.TypePoint, geometry.TypeLineString, geometry.TypePolygon}
)

func mountRef(v Variant) ParentRef {
	return ParentRef{Column: "mount_" + string(v) + "_id", Field: "mount_" + string(v), Target: Kind{FamilyMount, v}}
}

var registry = func() []KindInfo {
	var out []KindInfo
	for _, v := range []Variant{VariantPlan, VariantReal} {
		out = append(out,
			KindInfo{Kind: Kind{FamilyBarrier, v}, GeometryTypes: anyShape},
			KindInfo{
				Kind:          Kind{FamilyRoadMarking, v},
				GeometryTypes: anyShape,
				Parents: []ParentRef{{
					Column: "traffic_sign_" + string(v) + "_id",
					Field:  "traffic_sign_" + string(v),
					Target: Kind{FamilyTrafficSign, v},
				}},
			},
			KindInfo{
				Kind:          Kind{FamilySignpost, v},
				GeometryTypes: pointOnly,
				Parents: []ParentRef{
					{Column: "parent_id", Field: "parent", Target: Kind{FamilySignpost, v}},
					mountRef(v),
				},
			},
			KindInfo{Kind: Kind{FamilyMount, v}, GeometryTypes: anyShape, DeviceTypeOptional: true},
			KindInfo{Kind: Kind{FamilyTrafficLight, v}, GeometryTypes: pointOnly, Parents: []ParentRef{mountRef(v)}},
			KindInfo{Kind: Kind{FamilyTrafficSign, v}, GeometryTypes: pointOnly, Parents: []ParentRef{mountRef(v)}},
			KindInfo{
				Kind:              Kind{FamilyAdditionalSign, v},
				GeometryTypes:     pointOnly,
				HasMissingContent: true,
				Parents: []ParentRef{
					{Column: "parent_id", Field: "parent", Target: Kind{FamilyTrafficSign, v}},
					mountRef(v),
				},
			},
			KindInfo{
				Kind:          Kind{FamilyFurnitureSignpost, v},
				GeometryTypes: pointOnly,
				Parents: []ParentRef{
					{Column: "parent_id", Field: "parent", Target: Kind{FamilyFurnitureSignpost, v}},
				},
			},
		)
	}
	for i := range out {
		if out[i].Kind == TrafficSignRealKind {
			out[i].Cascade = []ChildRef{{Kind: AdditionalSignRealKind, Column: "parent_id"}}
		}
	}
	return out
}()

// AllKinds lists every device kind, plan variants first.
func AllKinds() []Kind {
	out := make([]Kind, len(registry))
	for i, info := range registry {
		out[i] = info.Kind
	}
	return out
}

// PlanKinds lists the plan variants.
func PlanKinds() []Kind {
	var out []Kind
	for _, info := range registry {
		if info.Kind.IsPlan() {
			out = append(out, info.Kind)
		}
	}
	return out
}

// Info returns the rules of k. Unknown kinds yield a zero KindInfo.
func Info(k Kind) KindInfo {
	for _, info := range registry {
		if info.Kind == k {
			return info
		}
	}
	return KindInfo{}
}

// ParseKind accepts "traffic_sign_plan", "trafficsignplan" and the plural
// route forms of both.
func ParseKind(s string) (Kind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, info := range registry {
		k := info.Kind
		switch s {
		case k.String(), k.Slug(), k.Table(), k.Slug() + "s":
			return k, true
		}
	}
	return Kind{}, false
}

// NewDevice returns a zero value of the model for k.
func NewDevice(k Kind) Device {
	switch k {
	case BarrierPlanKind:
		return &BarrierPlan{}
	case BarrierRealKind:
		return &BarrierReal{}
	case RoadMarkingPlanKind:
		return &RoadMarkingPlan{}
	case RoadMarkingRealKind:
		return &RoadMarkingReal{}
	case SignpostPlanKind:
		return &SignpostPlan{}
	case SignpostRealKind:
		return &SignpostReal{}
	case MountPlanKind:
		return &MountPlan{}
	case MountRealKind:
		return &MountReal{}
	case TrafficLightPlanKind:
		return &TrafficLightPlan{}
	case TrafficLightRealKind:
		return &TrafficLightReal{}
	case TrafficSignPlanKind:
		return &TrafficSignPlan{}
	case TrafficSignRealKind:
		return &TrafficSignReal{}
	case AdditionalSignPlanKind:
		return &AdditionalSignPlan{}
	case AdditionalSignRealKind:
		return &AdditionalSignReal{}
	case FurnitureSignpostPlanKind:
		return &FurnitureSignpostPlan{}
	case FurnitureSignpostRealKind:
		return &FurnitureSignpostReal{}
	}
	return nil
}
