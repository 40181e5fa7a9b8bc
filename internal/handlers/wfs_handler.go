package handlers

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"infra-registry/internal/wfs"
)

type FeatureSource interface {
	GetFeature(ctx context.Context, req *wfs.Request) ([]wfs.FeatureSet, error)
	AxisOrder() wfs.AxisOrder
}

// WFSHandler serves GET /wfs.
type WFSHandler struct {
	base
	Source   FeatureSource
	MaxCount int
}

func NewWFSHandler(source FeatureSource, maxCount int, log *zap.Logger) *WFSHandler {
	return &WFSHandler{base: base{log: log}, Source: source, MaxCount: maxCount}
}

// Handle handles GET /wfs
// @Summary WFS 2.0 GetFeature and GetCapabilities
// @Tags wfs
// @Produce xml
// @Param service query string true "WFS"
// @Param request query string true "GetFeature or GetCapabilities"
// @Param typeNames query string false "Comma separated type names"
// @Param outputFormat query string false "gml (default) or geojson"
// @Success 200 {string} string "GML 3.2 feature collection"
// @Router /wfs [get]
func (h *WFSHandler) Handle(c *fiber.Ctx) error {
	params := map[string]string{}
	c.Context().QueryArgs().VisitAll(func(k, v []byte) {
		params[strings.ToLower(string(k))] = string(v)
	})
	req, err := wfs.ParseRequest(params, h.MaxCount)
	if err != nil {
		return h.fail(c, err)
	}

	var buf bytes.Buffer
	if req.Operation == wfs.OpGetCapabilities {
		if err := wfs.WriteCapabilities(&buf, c.Path()); err != nil {
			return h.fail(c, err)
		}
		c.Set(fiber.HeaderContentType, "application/xml")
		return c.Send(buf.Bytes())
	}

	sets, err := h.Source.GetFeature(c.UserContext(), req)
	if err != nil {
		return h.fail(c, err)
	}
	if req.Format == wfs.FormatGeoJSON {
		err = wfs.WriteGeoJSON(&buf, sets)
	} else {
		err = wfs.WriteGML(&buf, sets, h.Source.AxisOrder(), time.Now())
	}
	if err != nil {
		return h.fail(c, err)
	}
	c.Set(fiber.HeaderContentType, req.Format.ContentType())
	return c.Send(buf.Bytes())
}
