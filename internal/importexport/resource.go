package importexport

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"infra-registry/internal/models"
)

// ForeignKey replaces a reference column by a human-readable key of the
// referenced catalog row.
type ForeignKey struct {
	Field  string
	Column string
	Table  string
	Key    string
}

var foreignKeys = []ForeignKey{
	{Field: "owner", Column: "owner__name_fi", Table: "owners", Key: "name_fi"},
	{Field: "responsible_entity", Column: "responsible_entity__name", Table: "responsible_entities", Key: "name"},
	{Field: "mount_type", Column: "mount_type__code", Table: "mount_types", Key: "code"},
	{Field: "device_type", Column: "device_type__code", Table: "device_types", Key: "code"},
}

// Audit columns are written on export and ignored on import.
var exportOnly = map[string]bool{
	"created_at": true, "updated_at": true, "created_by": true, "updated_by": true,
}

// Fields that never appear in a dataset. content_s is carried by the
// per-property content columns.
var omitted = map[string]bool{
	"is_active": true, "deleted_at": true, "deleted_by": true,
	"replaced_by": true, "content_s": true,
}

// column is one model field of a resource.
type column struct {
	Name  string
	Field string
	Type  reflect.Type
	FK    *ForeignKey
}

// Resource describes the dataset columns of one device kind.
type Resource struct {
	Kind    models.Kind
	columns []column
	byName  map[string]column
}

// NewResource builds the resource of kind k from its model's JSON fields.
func NewResource(k models.Kind) *Resource {
	r := &Resource{Kind: k, byName: map[string]column{}}
	for _, f := range jsonFields(reflect.TypeOf(models.NewDevice(k)).Elem()) {
		if omitted[f.name] || (f.name == "replaces" && !k.IsPlan()) {
			continue
		}
		c := column{Name: f.name, Field: f.name, Type: f.typ}
		for i := range foreignKeys {
			if foreignKeys[i].Field == f.name {
				c.FK = &foreignKeys[i]
				c.Name = foreignKeys[i].Column
			}
		}
		r.columns = append(r.columns, c)
		r.byName[c.Name] = c
	}
	return r
}

// Columns returns the model column names in model order.
func (r *Resource) Columns() []string {
	out := make([]string, len(r.columns))
	for i, c := range r.columns {
		out[i] = c.Name
	}
	return out
}

// column returns the model column named name.
func (r *Resource) column(name string) (column, bool) {
	c, ok := r.byName[name]
	return c, ok
}

type jsonField struct {
	name string
	typ  reflect.Type
}

// jsonFields flattens embedded structs the way encoding/json does.
func jsonFields(t reflect.Type) []jsonField {
	var out []jsonField
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			out = append(out, jsonFields(f.Type)...)
			continue
		}
		if !f.IsExported() {
			continue
		}
		name := strings.Split(f.Tag.Get("json"), ",")[0]
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		out = append(out, jsonField{name: name, typ: f.Type})
	}
	return out
}

// encodeCell renders a decoded JSON value as cell text.
func encodeCell(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case uuid.UUID:
		return x.String()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

// decodeCell converts cell text to the JSON value of a field of type t.
// Empty cells become null.
func decodeCell(s string, t reflect.Type) (json.RawMessage, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return json.RawMessage("null"), nil
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Bool:
		b, err := strconv.ParseBool(strings.ToLower(s))
		if err != nil {
			return nil, fmt.Errorf("expected a boolean")
		}
		return json.RawMessage(strconv.FormatBool(b)), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("expected an integer")
		}
		return json.RawMessage(strconv.FormatInt(n, 10)), nil
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
		if err != nil {
			return nil, fmt.Errorf("expected a number")
		}
		return json.RawMessage(strconv.FormatFloat(f, 'f', -1, 64)), nil
	case reflect.Slice, reflect.Map:
		if !json.Valid([]byte(s)) {
			return nil, fmt.Errorf("expected JSON")
		}
		return json.RawMessage(s), nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return data, nil
}

var uuidType = reflect.TypeOf(uuid.UUID{})

// isReference reports whether t is a (possibly optional) row id.
func isReference(t reflect.Type) bool {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t == uuidType
}

// placeholder parses a positive integer row placeholder.
func placeholder(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// toMap renders v through its JSON form.
func toMap(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := make(map[string]interface{})
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
