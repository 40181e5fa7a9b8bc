package models

type Lifecycle string

const (
	LifecycleActive              Lifecycle = "ACTIVE"
	LifecycleInactive            Lifecycle = "INACTIVE"
	LifecycleTemporarilyActive   Lifecycle = "TEMPORARILY_ACTIVE"
	LifecycleTemporarilyInactive Lifecycle = "TEMPORARILY_INACTIVE"
)

func (l Lifecycle) Valid() bool {
	switch l {
	case LifecycleActive, LifecycleInactive, LifecycleTemporarilyActive, LifecycleTemporarilyInactive:
		return true
	}
	return false
}

type InstallationStatus string

const (
	InstallationInUse   InstallationStatus = "IN_USE"
	InstallationCovered InstallationStatus = "COVERED"
	InstallationFallen  InstallationStatus = "FALLEN"
	InstallationMissing InstallationStatus = "MISSING"
	InstallationOther   InstallationStatus = "OTHER"
)

func (s InstallationStatus) Valid() bool {
	switch s {
	case InstallationInUse, InstallationCovered, InstallationFallen, InstallationMissing, InstallationOther:
		return true
	}
	return false
}

type Condition string

const (
	ConditionVeryBad  Condition = "VERY_BAD"
	ConditionBad      Condition = "BAD"
	ConditionAverage  Condition = "AVERAGE"
	ConditionGood     Condition = "GOOD"
	ConditionVeryGood Condition = "VERY_GOOD"
)

func (c Condition) Valid() bool {
	switch c {
	case ConditionVeryBad, ConditionBad, ConditionAverage, ConditionGood, ConditionVeryGood:
		return true
	}
	return false
}

type LocationSpecifier string

const (
	LocationRight    LocationSpecifier = "RIGHT"
	LocationLeft     LocationSpecifier = "LEFT"
	LocationAbove    LocationSpecifier = "ABOVE"
	LocationMiddle   LocationSpecifier = "MIDDLE"
	LocationVertical LocationSpecifier = "VERTICAL"
	LocationOutside  LocationSpecifier = "OUTSIDE"
)

func (l LocationSpecifier) Valid() bool {
	switch l {
	case LocationRight, LocationLeft, LocationAbove, LocationMiddle, LocationVertical, LocationOutside:
		return true
	}
	return false
}

type Size string

const (
	SizeSmall  Size = "S"
	SizeMedium Size = "M"
	SizeLarge  Size = "L"
)

func (s Size) Valid() bool { return s == SizeSmall || s == SizeMedium || s == SizeLarge }

type Reflection string

const (
	ReflectionR1 Reflection = "R1"
	ReflectionR2 Reflection = "R2"
	ReflectionR3 Reflection = "R3"
)

func (r Reflection) Valid() bool { return r == ReflectionR1 || r == ReflectionR2 || r == ReflectionR3 }

type Surface string

const (
	SurfaceFlat   Surface = "FLAT"
	SurfaceConvex Surface = "CONVEX"
)

func (s Surface) Valid() bool { return s == SurfaceFlat || s == SurfaceConvex }

// SignColor is the background color of a sign face.
type SignColor string

const (
	SignColorBlue   SignColor = "BLUE"
	SignColorYellow SignColor = "YELLOW"
)

func (c SignColor) Valid() bool { return c == SignColorBlue || c == SignColorYellow }

type RoadMarkingColor string

const (
	RoadMarkingWhite  RoadMarkingColor = "WHITE"
	RoadMarkingYellow RoadMarkingColor = "YELLOW"
)

func (c RoadMarkingColor) Valid() bool { return c == RoadMarkingWhite || c == RoadMarkingYellow }

// ArrowDirection is stored as an integer code.
type ArrowDirection int

const (
	ArrowStraight ArrowDirection = iota + 1
	ArrowRight
	ArrowRightAndStraight
	ArrowLeft
	ArrowLeftAndStraight
	ArrowLeftAndRight
	ArrowLeftRightAndStraight
	ArrowUTurn
)

func (a ArrowDirection) Valid() bool { return a >= ArrowStraight && a <= ArrowUTurn }

type LineDirection string

const (
	LineForward  LineDirection = "FORWARD"
	LineBackward LineDirection = "BACKWARD"
)

func (d LineDirection) Valid() bool { return d == LineForward || d == LineBackward }

type ConnectionType string

const (
	ConnectionClosed  ConnectionType = "CLOSED"
	ConnectionOpenOut ConnectionType = "OPEN_OUT"
)

func (c ConnectionType) Valid() bool { return c == ConnectionClosed || c == ConnectionOpenOut }

type TrafficLightType string

const (
	TrafficLightSignal     TrafficLightType = "SIGNAL"
	TrafficLightArrowRight TrafficLightType = "ARROW_RIGHT"
	TrafficLightArrowLeft  TrafficLightType = "ARROW_LEFT"
	TrafficLightTram       TrafficLightType = "TRAM"
	TrafficLightPedestrian TrafficLightType = "PEDESTRIAN"
	TrafficLightBicycle    TrafficLightType = "BICYCLE"
)

func (t TrafficLightType) Valid() bool {
	switch t {
	case TrafficLightSignal, TrafficLightArrowRight, TrafficLightArrowLeft, TrafficLightTram, TrafficLightPedestrian, TrafficLightBicycle:
		return true
	}
	return false
}

type OrganizationLevel string

const (
	OrganizationDivision OrganizationLevel = "DIVISION"
	OrganizationService  OrganizationLevel = "SERVICE"
	OrganizationUnit     OrganizationLevel = "UNIT"
	OrganizationPerson   OrganizationLevel = "PERSON"
	OrganizationProject  OrganizationLevel = "PROJECT"
)

func (o OrganizationLevel) Valid() bool {
	switch o {
	case OrganizationDivision, OrganizationService, OrganizationUnit, OrganizationPerson, OrganizationProject:
		return true
	}
	return false
}
