package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Config holds all configuration values from environment.
type Config struct {
	AppPort        string
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioSSL       bool
	RedisHost      string
	RedisPort      string

	JWTSecret string
	LogLevel  string
	LogFormat string

	// Spatial settings
	SRID               int
	BBoxMinX, BBoxMinY float64
	BBoxMaxX, BBoxMaxY float64
	PlanLocationBuffer float64
	WFSAxisOrder       string // "yx" (GML order for EPSG:3879) or "xy"

	// Device type icons
	IconPNGSizes []int
	IconPNGRoot  string
	IconSVGRoot  string

	// Scanner ingest
	IngestSourceName         string
	IngestDefaultOwner       string
	IngestTicketMachineCodes []string
	SignpostIngestEnabled    bool
	IngestFeedURL            string
	IngestFeedToken          string
	ReportDir                string

	MatchMaxDistance float64
	APIMaxPageSize   int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("REGISTRY_PORT", "8080")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("MINIO_SSL", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("SRID", 3879)
	v.SetDefault("BBOX_MIN_X", 25487917.069)
	v.SetDefault("BBOX_MIN_Y", 6645439.04)
	v.SetDefault("BBOX_MAX_X", 25514074.208)
	v.SetDefault("BBOX_MAX_Y", 6687278.424)
	v.SetDefault("PLAN_LOCATION_BUFFER", 5.0)
	v.SetDefault("WFS_AXIS_ORDER", "yx")
	v.SetDefault("ICON_PNG_SIZES", "32,64,128,256")
	v.SetDefault("ICON_PNG_ROOT", "icons/png")
	v.SetDefault("ICON_SVG_ROOT", "icons/svg")
	v.SetDefault("INGEST_SOURCE_NAME", "StreetScan")
	v.SetDefault("INGEST_DEFAULT_OWNER", "Helsingin kaupunki")
	v.SetDefault("INGEST_TICKET_MACHINE_CODES", "H20.72,H20.73")
	v.SetDefault("SIGNPOST_INGEST_ENABLED", false)
	v.SetDefault("REPORT_DIR", "reports")
	v.SetDefault("MATCH_MAX_DISTANCE", 2.0)
	v.SetDefault("API_MAX_PAGE_SIZE", 1000)
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	sizes, err := parseIntList(v.GetString("ICON_PNG_SIZES"))
	if err != nil {
		return nil, fmt.Errorf("invalid ICON_PNG_SIZES value: %v", err)
	}
	axisOrder := strings.ToLower(v.GetString("WFS_AXIS_ORDER"))
	if axisOrder != "yx" && axisOrder != "xy" {
		return nil, fmt.Errorf("invalid WFS_AXIS_ORDER value: %q", axisOrder)
	}

	cfg := &Config{
		AppPort:        v.GetString("REGISTRY_PORT"),
		DBHost:         v.GetString("DB_HOST"),
		DBPort:         v.GetString("DB_PORT"),
		DBUser:         v.GetString("DB_USER"),
		DBPassword:     v.GetString("DB_PASSWORD"),
		DBName:         v.GetString("DB_NAME"),
		MinioEndpoint:  v.GetString("MINIO_ENDPOINT"),
		MinioAccessKey: v.GetString("MINIO_ACCESS_KEY"),
		MinioSecretKey: v.GetString("MINIO_SECRET_KEY"),
		MinioBucket:    v.GetString("MINIO_BUCKET"),
		MinioSSL:       v.GetBool("MINIO_SSL"),
		RedisHost:      v.GetString("REDIS_HOST"),
		RedisPort:      v.GetString("REDIS_PORT"),

		JWTSecret: v.GetString("JWT_SECRET"),
		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),

		SRID:               v.GetInt("SRID"),
		BBoxMinX:           v.GetFloat64("BBOX_MIN_X"),
		BBoxMinY:           v.GetFloat64("BBOX_MIN_Y"),
		BBoxMaxX:           v.GetFloat64("BBOX_MAX_X"),
		BBoxMaxY:           v.GetFloat64("BBOX_MAX_Y"),
		PlanLocationBuffer: v.GetFloat64("PLAN_LOCATION_BUFFER"),
		WFSAxisOrder:       axisOrder,

		IconPNGSizes: sizes,
		IconPNGRoot:  v.GetString("ICON_PNG_ROOT"),
		IconSVGRoot:  v.GetString("ICON_SVG_ROOT"),

		IngestSourceName:         v.GetString("INGEST_SOURCE_NAME"),
		IngestDefaultOwner:       v.GetString("INGEST_DEFAULT_OWNER"),
		IngestTicketMachineCodes: splitList(v.GetString("INGEST_TICKET_MACHINE_CODES")),
		SignpostIngestEnabled:    v.GetBool("SIGNPOST_INGEST_ENABLED"),
		IngestFeedURL:            v.GetString("INGEST_FEED_URL"),
		IngestFeedToken:          v.GetString("INGEST_FEED_TOKEN"),
		ReportDir:                v.GetString("REPORT_DIR"),

		MatchMaxDistance: v.GetFloat64("MATCH_MAX_DISTANCE"),
		APIMaxPageSize:   v.GetInt("API_MAX_PAGE_SIZE"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate performs basic validation for required fields.
func (c *Config) Validate() error {
	if c.DBHost == "" || c.DBUser == "" || c.DBName == "" {
		return fmt.Errorf("database configuration is incomplete")
	}
	if c.MinioEndpoint == "" || c.MinioAccessKey == "" || c.MinioSecretKey == "" || c.MinioBucket == "" {
		return fmt.Errorf("minio configuration is incomplete")
	}
	if c.BBoxMinX >= c.BBoxMaxX || c.BBoxMinY >= c.BBoxMaxY {
		return fmt.Errorf("bounding box is empty: [%f, %f, %f, %f]", c.BBoxMinX, c.BBoxMinY, c.BBoxMaxX, c.BBoxMaxY)
	}
	if c.APIMaxPageSize <= 0 {
		return fmt.Errorf("API_MAX_PAGE_SIZE must be positive")
	}
	return nil
}

// ConnectDatabase initializes a GORM database connection to PostgreSQL.
func ConnectDatabase(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}
	return db, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseIntList(s string) ([]int, error) {
	var out []int
	for _, part := range splitList(s) {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		if n <= 0 {
			return nil, fmt.Errorf("size must be positive: %d", n)
		}
		out = append(out, n)
	}
	return out, nil
}
