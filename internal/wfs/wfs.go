// Package wfs publishes the device tables to GIS clients as a read-only
// WFS 2.0 GetFeature endpoint with GML 3.2 and GeoJSON output.
package wfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"infra-registry/internal/apperrors"
	"infra-registry/internal/geometry"
	"infra-registry/internal/models"
	"infra-registry/internal/repository"
)

const centroidSuffix = "centroid"

// AxisOrder selects the coordinate order of GML output.
type AxisOrder string

const (
	// AxisYX is the northing-first order EPSG:3879 mandates.
	AxisYX AxisOrder = "yx"
	AxisXY AxisOrder = "xy"
)

// ParseAxisOrder accepts "yx" and "xy"; anything else is AxisYX.
func ParseAxisOrder(s string) AxisOrder {
	if strings.EqualFold(strings.TrimSpace(s), string(AxisXY)) {
		return AxisXY
	}
	return AxisYX
}

type Format string

const (
	FormatGML     Format = "gml"
	FormatGeoJSON Format = "geojson"
)

// ContentType is the response media type of f.
func (f Format) ContentType() string {
	if f == FormatGeoJSON {
		return "application/geo+json"
	}
	return "application/gml+xml; version=3.2"
}

// FeatureType is a published type name. Centroid types render every feature
// at the centroid of its geometry.
type FeatureType struct {
	Name     string
	Kind     models.Kind
	Centroid bool
}

// FeatureTypes lists every published type name.
func FeatureTypes() []FeatureType {
	var out []FeatureType
	for _, k := range models.AllKinds() {
		out = append(out,
			FeatureType{Name: k.Slug(), Kind: k},
			FeatureType{Name: k.Slug() + centroidSuffix, Kind: k, Centroid: true},
		)
	}
	return out
}

// ResolveType maps a type name, optionally prefixed with "app:", to its
// feature type.
func ResolveType(name string) (FeatureType, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimPrefix(name, "app:")
	for _, ft := range FeatureTypes() {
		if ft.Name == name {
			return ft, true
		}
	}
	return FeatureType{}, false
}

// Request is a parsed GetFeature or GetCapabilities request.
type Request struct {
	Operation string
	Types     []FeatureType
	Format    Format
	Count     int
}

const (
	OpGetFeature      = "GetFeature"
	OpGetCapabilities = "GetCapabilities"
)

func acceptedSRS(name string) bool {
	switch strings.ToLower(name) {
	case "", "epsg:3879", "urn:ogc:def:crs:epsg::3879", "http://www.opengis.net/def/crs/epsg/0/3879":
		return true
	}
	return false
}

// ParseRequest validates KVP parameters. Parameter names are matched
// case-insensitively, so params should be keyed by lower-cased name.
func ParseRequest(params map[string]string, maxCount int) (*Request, error) {
	get := func(k string) string { return strings.TrimSpace(params[k]) }

	if !strings.EqualFold(get("service"), "WFS") {
		return nil, apperrors.FieldError("service", "must be WFS")
	}
	if v := get("version"); v != "" && v != "2.0.0" {
		return nil, apperrors.FieldError("version", fmt.Sprintf("unsupported version %q", v))
	}
	req := &Request{Format: FormatGML}
	switch {
	case strings.EqualFold(get("request"), OpGetCapabilities):
		req.Operation = OpGetCapabilities
		req.Types = FeatureTypes()
		return req, nil
	case strings.EqualFold(get("request"), OpGetFeature):
		req.Operation = OpGetFeature
	default:
		return nil, apperrors.FieldError("request", fmt.Sprintf("unsupported request %q", get("request")))
	}

	names := get("typenames")
	if names == "" {
		names = get("typename")
	}
	if names == "" {
		return nil, apperrors.FieldError("typeNames", "this field is required")
	}
	for _, name := range strings.Split(names, ",") {
		ft, ok := ResolveType(name)
		if !ok {
			return nil, apperrors.FieldError("typeNames", fmt.Sprintf("unknown type name %q", strings.TrimSpace(name)))
		}
		req.Types = append(req.Types, ft)
	}

	switch f := strings.ToLower(get("outputformat")); {
	case f == "" || strings.Contains(f, "gml"):
		req.Format = FormatGML
	case strings.Contains(f, "json"):
		req.Format = FormatGeoJSON
	default:
		return nil, apperrors.FieldError("outputFormat", fmt.Sprintf("unsupported output format %q", f))
	}

	if !acceptedSRS(get("srsname")) {
		return nil, apperrors.FieldError("srsName", "only "+geometry.CRSURN()+" is served")
	}

	req.Count = maxCount
	if raw := get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return nil, apperrors.FieldError("count", "must be a positive integer")
		}
		if maxCount <= 0 || n < maxCount {
			req.Count = n
		}
	}
	return req, nil
}

// Property is one rendered attribute of a feature.
type Property struct {
	Name  string
	Value interface{}
}

type Feature struct {
	ID         uuid.UUID
	Geometry   geometry.Geometry
	Properties []Property
}

// FeatureSet holds the features of one type name.
type FeatureSet struct {
	Type     FeatureType
	Features []Feature
}

// Columns that never leave the service through WFS.
var hidden = map[string]bool{
	"id":          true,
	"location":    true,
	"is_active":   true,
	"deleted_at":  true,
	"created_by":  true,
	"updated_by":  true,
	"deleted_by":  true,
	"replaces":    true,
	"replaced_by": true,
}

// NewFeature flattens d into a feature of ft.
func NewFeature(ft FeatureType, d models.Device) (Feature, error) {
	base := d.Core()
	f := Feature{ID: base.ID, Geometry: base.Location}
	if ft.Centroid {
		f.Geometry = geometry.Centroid(base.Location)
	}

	data, err := json.Marshal(d)
	if err != nil {
		return Feature{}, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var fields map[string]interface{}
	if err := dec.Decode(&fields); err != nil {
		return Feature{}, err
	}
	names := make([]string, 0, len(fields))
	for name, v := range fields {
		if v == nil || hidden[name] {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		f.Properties = append(f.Properties, Property{Name: name, Value: fields[name]})
	}
	return f, nil
}

// Service loads feature sets from the device tables.
type Service struct {
	store repository.Store
	axis  AxisOrder
	log   *zap.Logger
}

func NewService(store repository.Store, axis AxisOrder, log *zap.Logger) *Service {
	return &Service{store: store, axis: axis, log: log}
}

func (s *Service) AxisOrder() AxisOrder { return s.axis }

// GetFeature loads the active rows of every requested type. Replaced plan
// devices are not published.
func (s *Service) GetFeature(ctx context.Context, req *Request) ([]FeatureSet, error) {
	sets := make([]FeatureSet, 0, len(req.Types))
	notReplaced := false
	for _, ft := range req.Types {
		items, _, err := s.store.Devices(ft.Kind).List(ctx, repository.DeviceFilter{IsReplaced: &notReplaced, Limit: req.Count})
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "listing %s", ft.Kind.Table())
		}
		set := FeatureSet{Type: ft, Features: make([]Feature, 0, len(items))}
		for _, d := range items {
			f, err := NewFeature(ft, d)
			if err != nil {
				return nil, pkgerrors.Wrapf(err, "rendering %s %s", ft.Name, d.Core().ID)
			}
			set.Features = append(set.Features, f)
		}
		sets = append(sets, set)
	}
	s.log.Debug("wfs features loaded", zap.Int("types", len(sets)))
	return sets, nil
}

// propertyText renders a property value as element text.
func propertyText(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
