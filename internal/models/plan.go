package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"

	"infra-registry/internal/geometry"
)

// Plan groups planned devices under one decision. When DeriveLocation is
// set, Location is recomputed from the planned devices on every save.
type Plan struct {
	ID uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserAudit
	SoftDelete
	SourceIdentity

	Name           string            `json:"name" gorm:"size:512;not null"`
	DecisionID     string            `json:"decision_id" gorm:"size:16"`
	DiaryNumber    string            `json:"diary_number" gorm:"size:32"`
	DrawingNumbers pq.StringArray    `json:"drawing_numbers" gorm:"type:text[]" swaggertype:"array,string"`
	DecisionDate   *Date             `json:"decision_date" gorm:"type:date" swaggertype:"string"`
	DecisionURL    string            `json:"decision_url" gorm:"size:2048"`
	DeriveLocation bool              `json:"derive_location"`
	Location       geometry.Geometry `json:"location" gorm:"type:geometry(MultiPolygonZ,3879)" swaggertype:"string"`
}

// PlanGeometryImportLog records one run of the plan geometry importer.
type PlanGeometryImportLog struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	FilePath  string         `json:"file_path" gorm:"size:1024"`
	StartTime time.Time      `json:"start_time"`
	EndTime   *time.Time     `json:"end_time"`
	Results   datatypes.JSON `json:"results" gorm:"type:jsonb"`
	DryRun    bool           `json:"dry_run"`
}
