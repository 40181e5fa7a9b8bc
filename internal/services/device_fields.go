package services

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"

	"infra-registry/internal/apperrors"
	"infra-registry/internal/models"
)

type validator interface {
	Valid() bool
}

var validatorType = reflect.TypeOf((*validator)(nil)).Elem()

// validateEnums adds an error for every non-zero enum field of v that is
// not one of its declared values.
func validateEnums(v interface{}, fields *apperrors.Error) {
	walkEnums(reflect.ValueOf(v), fields)
}

func walkEnums(v reflect.Value, fields *apperrors.Error) {
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		fv := v.Field(i)
		if f.Anonymous {
			walkEnums(fv, fields)
			continue
		}
		if !f.Type.Implements(validatorType) || fv.IsZero() {
			continue
		}
		if !fv.Interface().(validator).Valid() {
			fields.Add(jsonName(f), fmt.Sprintf("%v is not a valid choice", fv.Interface()))
		}
	}
}

func jsonName(f reflect.StructField) string {
	name := strings.Split(f.Tag.Get("json"), ",")[0]
	if name == "" {
		return f.Name
	}
	return name
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

// refID reads a uuid reference from a JSON map; nil when unset.
func refID(m map[string]interface{}, field string) *uuid.UUID {
	s, ok := m[field].(string)
	if !ok || s == "" {
		return nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil
	}
	return &id
}

// parentRefs returns the device references of d that are set.
func parentRefs(d models.Device) (map[models.ParentRef]uuid.UUID, error) {
	m, err := toMap(d)
	if err != nil {
		return nil, err
	}
	out := make(map[models.ParentRef]uuid.UUID)
	for _, ref := range models.Info(d.Kind()).Parents {
		if id := refID(m, ref.Field); id != nil {
			out[ref] = *id
		}
	}
	return out, nil
}

// ignoredInDiff are bookkeeping fields that never count as a change.
var ignoredInDiff = map[string]bool{
	"created_at": true, "updated_at": true, "updated_by": true,
	"replaces": true, "replaced_by": true,
}

// Change is one field of an audit diff.
type Change struct {
	Old interface{} `json:"old"`
	New interface{} `json:"new"`
}

// diff returns the fields whose JSON value differs between before and after.
func diff(before, after interface{}) (map[string]Change, error) {
	a, err := toMap(before)
	if err != nil {
		return nil, err
	}
	b, err := toMap(after)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Change)
	for k, nv := range b {
		if ignoredInDiff[k] {
			continue
		}
		if ov := a[k]; !reflect.DeepEqual(ov, nv) {
			out[k] = Change{Old: ov, New: nv}
		}
	}
	for k, ov := range a {
		if _, ok := b[k]; !ok && !ignoredInDiff[k] {
			out[k] = Change{Old: ov}
		}
	}
	return out, nil
}
