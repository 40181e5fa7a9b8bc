// Package ingest loads field-survey data from the street scanner vendor and
// plan metadata files into the registry.
package ingest

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"infra-registry/internal/geometry"
	"infra-registry/internal/importexport"
	"infra-registry/internal/models"
)

// Scanner file columns.
const (
	colID                = "id"
	colX                 = "x"
	colY                 = "y"
	colZ                 = "z"
	colMountType         = "tyyppi"
	colScannedAt         = "tallennusajankohta"
	colLocationSpecifier = "Sijaintitarkenne"
	colCode              = "merkkikoodi"
	colText              = "teksti"
	colNumberCode        = "numerokoodi"
	colColor             = "taustaväri"
	colAzimuth           = "atsimuutti"
	colParentSign        = "lisäkilven_päämerkin_id"
	colHeight            = "korkeus"
	colMountID           = "kiinnityskohta_id"
)

// Class is the registry family a scanned sign row belongs to.
type Class int

const (
	ClassIgnore Class = iota
	ClassTrafficSign
	ClassAdditionalSign
	ClassSignpost
	ClassTicketMachine
)

func (c Class) String() string {
	switch c {
	case ClassTrafficSign:
		return "traffic_sign"
	case ClassAdditionalSign:
		return "additional_sign"
	case ClassSignpost:
		return "signpost"
	case ClassTicketMachine:
		return "ticket_machine"
	}
	return "ignore"
}

var signpostExclusions = []string{"65", "62", "F24", "F8.1"}

// Classifier sorts sign codes into classes.
type Classifier struct {
	TicketMachineCodes []string
}

// Classify returns the class of a scanned sign code. Ticket machine codes
// are checked before the additional-sign prefixes they share.
func (c Classifier) Classify(code string) Class {
	code = strings.TrimSpace(code)
	if code == "" || strings.EqualFold(code, "x") || strings.EqualFold(code, "not classified") {
		return ClassIgnore
	}
	for _, tm := range c.TicketMachineCodes {
		if strings.EqualFold(code, strings.TrimSpace(tm)) {
			return ClassTicketMachine
		}
	}
	upper := strings.ToUpper(code)
	if strings.HasPrefix(upper, "H") || strings.HasPrefix(upper, "8") {
		return ClassAdditionalSign
	}
	if strings.ContainsAny(upper[:1], "67FG") {
		for _, ex := range signpostExclusions {
			if strings.HasPrefix(upper, ex) {
				return ClassTrafficSign
			}
		}
		return ClassSignpost
	}
	return ClassTrafficSign
}

// row is one scanner record keyed by column name.
type row map[string]string

func (r row) get(col string) string { return strings.TrimSpace(r[col]) }

// keyed indexes the rows of ds by id. A later row with the same id
// replaces an earlier one; rows without an id are dropped.
func keyed(ds *importexport.Dataset) ([]string, map[string]row) {
	out := map[string]row{}
	var order []string
	if ds == nil {
		return order, out
	}
	for i := range ds.Rows {
		r := row(ds.Record(i))
		id := r.get(colID)
		if id == "" {
			continue
		}
		if _, seen := out[id]; !seen {
			order = append(order, id)
		}
		out[id] = r
	}
	return order, out
}

var valuePattern = regexp.MustCompile(`^\d+(\.\d+)?`)

// parseValue extracts the leading number of a scanned number code.
func parseValue(s string) *float64 {
	m := valuePattern.FindString(strings.ReplaceAll(strings.TrimSpace(s), ",", "."))
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
}

// parseHeight converts meters to whole centimeters.
func parseHeight(s string) (*int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	m, err := parseFloat(s)
	if err != nil {
		return nil, fmt.Errorf("invalid height %q", s)
	}
	cm := int(math.Round(m * 100))
	return &cm, nil
}

const scannedAtLayout = "2006/01/02 15:04:05-0700"

// parseScannedAt reads timestamps like "2023/05/04 10:11:12+03". The
// scanner writes the offset in hours only.
func parseScannedAt(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(scannedAtLayout, s+"00")
	if err != nil {
		return nil, fmt.Errorf("invalid scan time %q", s)
	}
	t = t.UTC()
	return &t, nil
}

// parseDirection rounds an azimuth in degrees to [0, 360).
func parseDirection(s string) (int, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	f, err := parseFloat(s)
	if err != nil {
		return 0, fmt.Errorf("invalid azimuth %q", s)
	}
	d := int(math.Round(f)) % 360
	if d < 0 {
		d += 360
	}
	return d, nil
}

func parseLocation(r row) (geometry.Geometry, error) {
	x, err := parseFloat(r.get(colX))
	if err != nil {
		return geometry.Geometry{}, fmt.Errorf("invalid x %q", r.get(colX))
	}
	y, err := parseFloat(r.get(colY))
	if err != nil {
		return geometry.Geometry{}, fmt.Errorf("invalid y %q", r.get(colY))
	}
	var z float64
	if raw := r.get(colZ); raw != "" {
		if z, err = parseFloat(raw); err != nil {
			return geometry.Geometry{}, fmt.Errorf("invalid z %q", raw)
		}
	}
	return geometry.NewPoint(x, y, z), nil
}

var locationWords = map[string]models.LocationSpecifier{
	"oikea":        models.LocationRight,
	"oikealla":     models.LocationRight,
	"vasen":        models.LocationLeft,
	"vasemmalla":   models.LocationLeft,
	"yläpuolella":  models.LocationAbove,
	"keskellä":     models.LocationMiddle,
	"keskisaareke": models.LocationMiddle,
	"pystysuunta":  models.LocationVertical,
	"ulkopuolella": models.LocationOutside,
}

// Codes mounted over or between lanes when the scanner leaves the
// location specifier empty.
var middleCodes = []string{"4171", "4172", "418", "D3."}

// locationSpecifier reads the raw specifier, falling back to the implicit
// default of the sign code.
func locationSpecifier(raw, code string) models.LocationSpecifier {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		if l := models.LocationSpecifier(strings.ToUpper(raw)); l.Valid() {
			return l
		}
		if l, ok := locationWords[strings.ToLower(raw)]; ok {
			return l
		}
	}
	for _, prefix := range middleCodes {
		if code == prefix || (strings.HasSuffix(prefix, ".") && strings.HasPrefix(code, prefix)) {
			return models.LocationMiddle
		}
	}
	return ""
}

func parseColor(s string) models.SignColor {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sininen", "blue":
		return models.SignColorBlue
	case "keltainen", "yellow":
		return models.SignColorYellow
	}
	return ""
}

// additionalInformation keeps the raw text of an additional sign until its
// content is structured.
func additionalInformation(r row) string {
	return fmt.Sprintf("text: %s; numbercode:%s", r.get(colText), r.get(colNumberCode))
}
