package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"

	"infra-registry/internal/geometry"
)

type Owner struct {
	ID     uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	NameFi string    `json:"name_fi" gorm:"size:254;not null;uniqueIndex"`
	NameEn string    `json:"name_en" gorm:"size:254"`
}

// ResponsibleEntity is a node of the organization tree used for
// authorization. Access to a node implies access to its descendants.
type ResponsibleEntity struct {
	ID                uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name              string            `json:"name" gorm:"size:254;not null;index"`
	OrganizationLevel OrganizationLevel `json:"organization_level" gorm:"size:16"`
	ParentID          *uuid.UUID        `json:"parent" gorm:"type:uuid;index"`
}

type OperationalArea struct {
	ID       uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name     string            `json:"name" gorm:"size:254;not null"`
	Location geometry.Geometry `json:"location" gorm:"type:geometry(MultiPolygon,3879)" swaggertype:"string"`
}

// User is the authenticated principal. WritePermissions holds kind names
// ("traffic_sign_plan", "plan", ...) or "*".
type User struct {
	ID                      uuid.UUID           `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Username                string              `json:"username" gorm:"size:150;not null;uniqueIndex"`
	IsSuperuser             bool                `json:"is_superuser"`
	BypassResponsibleEntity bool                `json:"bypass_responsible_entity"`
	BypassOperationalArea   bool                `json:"bypass_operational_area"`
	WritePermissions        pq.StringArray      `json:"write_permissions" gorm:"type:text[]" swaggertype:"array,string"`
	ResponsibleEntities     []ResponsibleEntity `json:"responsible_entities,omitempty" gorm:"many2many:user_responsible_entities"`
	OperationalAreas        []OperationalArea   `json:"operational_areas,omitempty" gorm:"many2many:user_operational_areas"`
}
