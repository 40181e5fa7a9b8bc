package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"infra-registry/internal/apperrors"
	"infra-registry/internal/models"
	"infra-registry/internal/storage"
)

// IconResource is the write-permission name of device type icons.
const IconResource = "device_type_icon"

// Rasterizer renders an SVG file as a PNG of the given size in outDir.
type Rasterizer func(ctx context.Context, svgPath, outDir string, size int) (string, error)

// IconOptions locate icons in object storage.
type IconOptions struct {
	SVGRoot string
	PNGRoot string
	Sizes   []int
}

// IconService stores device type icons and their PNG derivatives. Storage
// and rendering failures are logged and counted but never fail a save.
type IconService struct {
	repo      CatalogStore[models.DeviceTypeIcon]
	objects   storage.ObjectStore
	rasterize Rasterizer
	perms     *PermissionChecker
	opts      IconOptions
	onFailure func()
	log       *zap.Logger
}

func NewIconService(repo CatalogStore[models.DeviceTypeIcon], objects storage.ObjectStore, rasterize Rasterizer, perms *PermissionChecker, opts IconOptions, onFailure func(), log *zap.Logger) *IconService {
	if onFailure == nil {
		onFailure = func() {}
	}
	return &IconService{repo: repo, objects: objects, rasterize: rasterize, perms: perms, opts: opts, onFailure: onFailure, log: log}
}

// SVGKey is the storage key of the icon source.
func (s *IconService) SVGKey(file string) string {
	return path.Join(s.opts.SVGRoot, file+".svg")
}

// PNGKey is the storage key of one derivative.
func (s *IconService) PNGKey(file string, size int) string {
	return path.Join(s.opts.PNGRoot, fmt.Sprint(size), file+".png")
}

func (s *IconService) List(ctx context.Context) ([]models.DeviceTypeIcon, error) {
	return s.repo.List(ctx, "file")
}

func (s *IconService) Get(ctx context.Context, id uuid.UUID) (*models.DeviceTypeIcon, error) {
	icon, err := s.repo.Get(ctx, id)
	return icon, apperrors.FromDB(err, "device type icon")
}

// Save stores the SVG under name (without extension), creating or
// updating the icon row, and regenerates every PNG derivative.
func (s *IconService) Save(ctx context.Context, user *models.User, filename string, svg io.Reader) (*models.DeviceTypeIcon, error) {
	if user == nil {
		return nil, apperrors.Unauthorized()
	}
	if !s.perms.CanWrite(user, IconResource) {
		return nil, apperrors.Forbidden()
	}
	if !strings.EqualFold(filepath.Ext(filename), ".svg") {
		return nil, apperrors.FieldError("file", "only SVG icons are accepted")
	}
	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	icon, err := s.repo.FindBy(ctx, "file", name)
	switch {
	case apperrors.Is(err, apperrors.KindNotFound):
		icon = &models.DeviceTypeIcon{ID: uuid.New(), File: name}
		if err := s.repo.Create(ctx, icon); err != nil {
			return nil, apperrors.FromDB(err, "device type icon")
		}
	case err != nil:
		return nil, errors.Wrap(err, "loading icon")
	default:
		if err := s.repo.Save(ctx, icon); err != nil {
			return nil, errors.Wrap(err, "saving icon")
		}
	}

	tmpDir, err := os.MkdirTemp("", "icon-*")
	if err != nil {
		return nil, errors.Wrap(err, "creating temp dir")
	}
	defer os.RemoveAll(tmpDir)

	svgPath := filepath.Join(tmpDir, name+".svg")
	size, err := writeFile(svgPath, svg)
	if err != nil {
		return nil, errors.Wrap(err, "buffering svg")
	}
	s.storeFile(ctx, s.SVGKey(name), svgPath, size, "image/svg+xml")

	for _, px := range s.opts.Sizes {
		pngPath, err := s.rasterize(ctx, svgPath, tmpDir, px)
		if err != nil {
			s.fail("icon render failed", err, zap.String("file", name), zap.Int("size", px))
			continue
		}
		info, err := os.Stat(pngPath)
		if err != nil {
			s.fail("icon render produced no file", err, zap.String("file", name), zap.Int("size", px))
			continue
		}
		s.storeFile(ctx, s.PNGKey(name, px), pngPath, info.Size(), "image/png")
	}
	s.log.Info("icon saved", zap.String("file", name), zap.Ints("sizes", s.opts.Sizes))
	return icon, nil
}

// Delete removes the icon row, its SVG and every derivative.
func (s *IconService) Delete(ctx context.Context, user *models.User, id uuid.UUID) error {
	if user == nil {
		return apperrors.Unauthorized()
	}
	if !s.perms.CanWrite(user, IconResource) {
		return apperrors.Forbidden()
	}
	icon, err := s.repo.Get(ctx, id)
	if err != nil {
		return apperrors.FromDB(err, "device type icon")
	}
	if _, err := s.repo.Delete(ctx, id); err != nil {
		return apperrors.FromDB(err, "device type icon")
	}
	keys := []string{s.SVGKey(icon.File)}
	for _, px := range s.opts.Sizes {
		keys = append(keys, s.PNGKey(icon.File, px))
	}
	for _, key := range keys {
		if err := s.objects.Remove(ctx, key); err != nil {
			s.fail("icon removal failed", err, zap.String("key", key))
		}
	}
	return nil
}

func (s *IconService) storeFile(ctx context.Context, key, localPath string, size int64, contentType string) {
	f, err := os.Open(localPath)
	if err != nil {
		s.fail("icon upload failed", err, zap.String("key", key))
		return
	}
	defer f.Close()
	if err := s.objects.Put(ctx, key, f, size, contentType); err != nil {
		s.fail("icon upload failed", err, zap.String("key", key))
	}
}

func (s *IconService) fail(msg string, err error, fields ...zap.Field) {
	s.onFailure()
	s.log.Error(msg, append(fields, zap.Error(err))...)
}

func writeFile(p string, r io.Reader) (int64, error) {
	f, err := os.Create(p)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(f, r)
}
