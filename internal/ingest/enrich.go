package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"infra-registry/internal/content"
	"infra-registry/internal/models"
	"infra-registry/internal/repository"
)

// PermitSignCode is the additional sign "not valid with a parking permit".
const PermitSignCode = "H20.8"

var scannedText = regexp.MustCompile(`^text:\s*(.*?);\s*numbercode:(.*)$`)

// EnrichPermitSigns structures the scanned text of permit additional signs
// that are still missing content. The permit area becomes content and the
// plate wording is prefixed to the kept text.
func EnrichPermitSigns(ctx context.Context, store repository.Store, log *zap.Logger) ([]Result, error) {
	dt, err := store.DeviceTypes().GetByCode(ctx, PermitSignCode)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("device type %s does not exist", PermitSignCode)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "loading device type")
	}
	if !dt.HasSchema() {
		return nil, fmt.Errorf("device type %s has no content schema", PermitSignCode)
	}

	var results []Result
	for _, k := range []models.Kind{models.AdditionalSignPlanKind, models.AdditionalSignRealKind} {
		items, _, err := store.Devices(k).List(ctx, repository.DeviceFilter{DeviceTypeID: &dt.ID, IncludeReplaced: true})
		if err != nil {
			return results, pkgerrors.Wrapf(err, "listing %s", k.Table())
		}
		for _, d := range items {
			res, err := enrichPermitSign(ctx, store, dt, d)
			if err != nil {
				return results, err
			}
			if res != nil {
				results = append(results, *res)
			}
		}
	}
	log.Info("permit sign enrichment finished", zap.Int("signs", len(results)))
	return results, nil
}

func enrichPermitSign(ctx context.Context, store repository.Store, dt *models.DeviceType, d models.Device) (*Result, error) {
	sign, ok := d.(interface {
		Attributes() *models.AdditionalSignAttrs
	})
	base := d.Core()
	if !ok || !sign.Attributes().MissingContent {
		return nil, nil
	}
	id := base.ID.String()
	m := scannedText.FindStringSubmatch(strings.TrimSpace(base.AdditionalInformation))
	if m == nil || strings.TrimSpace(m[1]) == "" {
		return &Result{ResultSkip, d.Kind().String(), id, "no scanned text"}, nil
	}
	permit, number := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])

	data, err := json.Marshal(map[string]string{"permit": permit})
	if err != nil {
		return nil, err
	}
	errs, err := content.Validate(dt.ContentSchema, data)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "device type %s", dt.Code)
	}
	if len(errs) > 0 {
		return &Result{ResultError, d.Kind().String(), id, errs[0].Error()}, nil
	}
	err = store.Devices(d.Kind()).UpdateColumns(ctx, base.ID, map[string]interface{}{
		"content_s":              datatypes.JSON(data),
		"missing_content":        false,
		"additional_information": fmt.Sprintf("text:Ei koske P-tunnuksella/Gäller ej med P-tecknet %s; numbercode:%s", permit, number),
		"updated_at":             time.Now(),
	})
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "updating %s %s", d.Kind(), id)
	}
	return &Result{ResultOK, d.Kind().String(), id, "enriched"}, nil
}
