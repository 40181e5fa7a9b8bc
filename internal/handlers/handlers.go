// Package handlers exposes the registry over HTTP with fiber.
package handlers

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"infra-registry/internal/apperrors"
	"infra-registry/internal/geometry"
	"infra-registry/internal/middleware"
)

const (
	InvalidUUIDError = "invalid UUID"
	geoFormatParam   = "geo_format"
	geoFormatGeoJSON = "geojson"
)

// Fields naming users; hidden from anonymous readers.
var userFields = []string{"created_by", "updated_by", "deleted_by", "actor"}

// Page is the envelope of list responses.
type Page struct {
	Count   int64         `json:"count"`
	Limit   int           `json:"limit"`
	Offset  int           `json:"offset"`
	Results []interface{} `json:"results"`
}

type base struct {
	log *zap.Logger
}

func (b base) fail(c *fiber.Ctx, err error) error {
	return middleware.WriteError(c, err, b.log)
}

func (b base) parseID(c *fiber.Ctx, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(param))
	if err != nil {
		return uuid.Nil, apperrors.FieldError(param, InvalidUUIDError)
	}
	return id, nil
}

// decode reads a JSON request body into v.
func decode(c *fiber.Ctx, v interface{}) error {
	body := bytes.TrimSpace(c.Body())
	if len(body) == 0 {
		return apperrors.Validation("request body is required")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return apperrors.Validation("malformed JSON: " + err.Error())
	}
	return nil
}

// merge applies the JSON object in patch over the JSON form of current and
// decodes the result into out.
func merge(current interface{}, patch []byte, out interface{}) error {
	data, err := json.Marshal(current)
	if err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var changes map[string]json.RawMessage
	if err := json.Unmarshal(patch, &changes); err != nil {
		return apperrors.Validation("malformed JSON: " + err.Error())
	}
	for k, v := range changes {
		fields[k] = v
	}
	data, err = json.Marshal(fields)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperrors.Validation("malformed JSON: " + err.Error())
	}
	return nil
}

// present converts v into its response form: locations follow the
// geo_format query parameter and anonymous callers lose user references.
func present(c *fiber.Ctx, v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]interface{}
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	if middleware.CurrentUser(c) == nil {
		for _, f := range userFields {
			delete(m, f)
		}
	}
	if strings.EqualFold(c.Query(geoFormatParam), geoFormatGeoJSON) {
		if ewkt, ok := m["location"].(string); ok {
			g, err := geometry.ParseEWKT(ewkt)
			if err != nil {
				return nil, err
			}
			if m["location"], err = g.GeoJSON(); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (b base) respond(c *fiber.Ctx, status int, v interface{}) error {
	out, err := present(c, v)
	if err != nil {
		return b.fail(c, err)
	}
	return c.Status(status).JSON(out)
}

func (b base) respondList(c *fiber.Ctx, items []interface{}, total int64, limit, offset int) error {
	page := Page{Count: total, Limit: limit, Offset: offset, Results: make([]interface{}, 0, len(items))}
	for _, item := range items {
		out, err := present(c, item)
		if err != nil {
			return b.fail(c, err)
		}
		page.Results = append(page.Results, out)
	}
	return c.JSON(page)
}

func pagination(c *fiber.Ctx) (limit, offset int, err error) {
	if limit, err = intQuery(c, "limit"); err != nil {
		return 0, 0, err
	}
	offset, err = intQuery(c, "offset")
	return limit, offset, err
}

func intQuery(c *fiber.Ctx, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperrors.FieldError(name, "must be a non-negative integer")
	}
	return n, nil
}

func uuidQuery(c *fiber.Ctx, name string) (*uuid.UUID, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperrors.FieldError(name, InvalidUUIDError)
	}
	return &id, nil
}

func boolQuery(c *fiber.Ctx, name string) (*bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperrors.FieldError(name, "must be a boolean")
	}
	return &v, nil
}
