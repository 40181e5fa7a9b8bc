package wfs

import (
	"encoding/json"
	"io"

	"infra-registry/internal/geometry"
)

// FeatureCollection is a GeoJSON feature collection with a named CRS.
type FeatureCollection struct {
	Type           string           `json:"type"`
	CRS            CRS              `json:"crs"`
	NumberReturned int              `json:"numberReturned"`
	Features       []GeoJSONFeature `json:"features"`
}

type GeoJSONFeature struct {
	Type       string                 `json:"type"`
	ID         string                 `json:"id"`
	Geometry   json.RawMessage        `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

type CRS struct {
	Type       string   `json:"type"`
	Properties CRSProps `json:"properties"`
}

type CRSProps struct {
	Name string `json:"name"`
}

// ToGeoJSON converts sets into one collection. Coordinates keep the
// canonical X, Y, Z order regardless of the GML axis setting.
func ToGeoJSON(sets []FeatureSet) (*FeatureCollection, error) {
	fc := &FeatureCollection{
		Type:     "FeatureCollection",
		CRS:      CRS{Type: "name", Properties: CRSProps{Name: geometry.CRSURN()}},
		Features: []GeoJSONFeature{},
	}
	for _, set := range sets {
		for _, f := range set.Features {
			geo, err := f.Geometry.GeoJSON()
			if err != nil {
				return nil, err
			}
			props := make(map[string]interface{}, len(f.Properties))
			for _, p := range f.Properties {
				props[p.Name] = p.Value
			}
			fc.Features = append(fc.Features, GeoJSONFeature{
				Type:       "Feature",
				ID:         set.Type.Name + "." + f.ID.String(),
				Geometry:   geo,
				Properties: props,
			})
		}
	}
	fc.NumberReturned = len(fc.Features)
	return fc, nil
}

func WriteGeoJSON(w io.Writer, sets []FeatureSet) error {
	fc, err := ToGeoJSON(sets)
	if err != nil {
		return err
	}
	return json.NewEncoder(w).Encode(fc)
}
