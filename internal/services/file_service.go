package services

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"infra-registry/internal/apperrors"
	"infra-registry/internal/models"
	"infra-registry/internal/repository"
	"infra-registry/internal/storage"
)

// FileStore is implemented by *repository.FileRepository.
type FileStore interface {
	CreateFile(ctx context.Context, file *models.DeviceFile) error
	GetFile(ctx context.Context, kind models.Kind, deviceID, fileID uuid.UUID) (*models.DeviceFile, error)
	ListFiles(ctx context.Context, kind models.Kind, deviceID uuid.UUID) ([]models.DeviceFile, error)
	UpdateFile(ctx context.Context, file *models.DeviceFile) error
	DeleteFile(ctx context.Context, id uuid.UUID) error
}

// Upload is one file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
	IsPublic    *bool
}

// FileService manages device attachments in object storage.
type FileService struct {
	files   FileStore
	devices repository.TableStore
	objects storage.ObjectStore
	perms   *PermissionChecker
	log     *zap.Logger
}

func NewFileService(files FileStore, devices repository.TableStore, objects storage.ObjectStore, perms *PermissionChecker, log *zap.Logger) *FileService {
	return &FileService{files: files, devices: devices, objects: objects, perms: perms, log: log}
}

// FileKey is the object storage key of an attachment.
func FileKey(kind models.Kind, deviceID, fileID uuid.UUID, filename string) string {
	return fmt.Sprintf("files/%s/%s/%s%s", kind, deviceID, fileID, strings.ToLower(filepath.Ext(filename)))
}

// List returns the attachments of a device. Anonymous callers only see
// public files.
func (s *FileService) List(ctx context.Context, user *models.User, kind models.Kind, deviceID uuid.UUID) ([]models.DeviceFile, error) {
	if err := s.requireDevice(ctx, kind, deviceID); err != nil {
		return nil, err
	}
	files, err := s.files.ListFiles(ctx, kind, deviceID)
	if err != nil {
		return nil, errors.Wrap(err, "listing files")
	}
	if user != nil {
		return files, nil
	}
	public := files[:0]
	for _, f := range files {
		if f.IsPublic {
			public = append(public, f)
		}
	}
	return public, nil
}

// Attach stores every upload under the device.
func (s *FileService) Attach(ctx context.Context, user *models.User, kind models.Kind, deviceID uuid.UUID, uploads []Upload) ([]models.DeviceFile, error) {
	if err := s.authorize(user, kind); err != nil {
		return nil, err
	}
	if err := s.requireDevice(ctx, kind, deviceID); err != nil {
		return nil, err
	}
	if len(uploads) == 0 {
		return nil, apperrors.FieldError("file", "no files were submitted")
	}
	out := make([]models.DeviceFile, 0, len(uploads))
	for _, u := range uploads {
		id := uuid.New()
		file := models.DeviceFile{
			ID:               id,
			Kind:             kind.String(),
			DeviceID:         deviceID,
			OriginalFilename: filepath.Base(u.Filename),
			ContentType:      u.ContentType,
			Size:             u.Size,
			StorageKey:       FileKey(kind, deviceID, id, u.Filename),
			IsPublic:         true,
		}
		if u.IsPublic != nil {
			file.IsPublic = *u.IsPublic
		}
		file.CreatedAt, file.UpdatedAt = time.Now(), time.Now()
		file.CreatedByID, file.UpdatedByID = userID(user), userID(user)

		if err := s.objects.Put(ctx, file.StorageKey, u.Body, u.Size, u.ContentType); err != nil {
			return out, errors.Wrapf(err, "uploading %s", u.Filename)
		}
		if err := s.files.CreateFile(ctx, &file); err != nil {
			_ = s.objects.Remove(ctx, file.StorageKey)
			return out, errors.Wrap(err, "saving file metadata")
		}
		s.log.Info("file attached", zap.String("kind", kind.String()), zap.String("device", deviceID.String()),
			zap.String("key", file.StorageKey), zap.Int64("size", u.Size))
		out = append(out, file)
	}
	return out, nil
}

// Replace overwrites the bytes of an attachment.
func (s *FileService) Replace(ctx context.Context, user *models.User, kind models.Kind, deviceID, fileID uuid.UUID, u Upload) (*models.DeviceFile, error) {
	if err := s.authorize(user, kind); err != nil {
		return nil, err
	}
	file, err := s.lookup(ctx, kind, deviceID, fileID)
	if err != nil {
		return nil, err
	}
	newKey := FileKey(kind, deviceID, fileID, u.Filename)
	if err := s.objects.Put(ctx, newKey, u.Body, u.Size, u.ContentType); err != nil {
		return nil, errors.Wrap(err, "uploading file")
	}
	if newKey != file.StorageKey {
		if err := s.objects.Remove(ctx, file.StorageKey); err != nil {
			s.log.Warn("failed to remove replaced file", zap.String("key", file.StorageKey), zap.Error(err))
		}
	}
	file.StorageKey = newKey
	file.OriginalFilename = filepath.Base(u.Filename)
	file.ContentType = u.ContentType
	file.Size = u.Size
	if u.IsPublic != nil {
		file.IsPublic = *u.IsPublic
	}
	file.UpdatedAt, file.UpdatedByID = time.Now(), userID(user)
	if err := s.files.UpdateFile(ctx, file); err != nil {
		return nil, errors.Wrap(err, "saving file metadata")
	}
	return file, nil
}

// Detach removes an attachment and its stored bytes.
func (s *FileService) Detach(ctx context.Context, user *models.User, kind models.Kind, deviceID, fileID uuid.UUID) error {
	if err := s.authorize(user, kind); err != nil {
		return err
	}
	file, err := s.lookup(ctx, kind, deviceID, fileID)
	if err != nil {
		return err
	}
	if err := s.files.DeleteFile(ctx, file.ID); err != nil {
		return errors.Wrap(err, "deleting file metadata")
	}
	if err := s.objects.Remove(ctx, file.StorageKey); err != nil {
		s.log.Warn("failed to remove stored file", zap.String("key", file.StorageKey), zap.Error(err))
	}
	return nil
}

// Open streams the bytes of an attachment. Private files need a user.
func (s *FileService) Open(ctx context.Context, user *models.User, kind models.Kind, deviceID, fileID uuid.UUID) (*models.DeviceFile, io.ReadCloser, error) {
	file, err := s.lookup(ctx, kind, deviceID, fileID)
	if err != nil {
		return nil, nil, err
	}
	if !file.IsPublic && user == nil {
		return nil, nil, apperrors.NotFound("file")
	}
	rc, err := s.objects.Get(ctx, file.StorageKey)
	if err != nil {
		return nil, nil, errors.Wrap(err, "reading file")
	}
	return file, rc, nil
}

func (s *FileService) lookup(ctx context.Context, kind models.Kind, deviceID, fileID uuid.UUID) (*models.DeviceFile, error) {
	if err := s.requireDevice(ctx, kind, deviceID); err != nil {
		return nil, err
	}
	file, err := s.files.GetFile(ctx, kind, deviceID, fileID)
	if err != nil {
		return nil, apperrors.FromDB(err, "file")
	}
	return file, nil
}

func (s *FileService) requireDevice(ctx context.Context, kind models.Kind, deviceID uuid.UUID) error {
	ok, err := s.devices.ActiveExists(ctx, kind, deviceID)
	if err != nil {
		return errors.Wrap(err, "checking device")
	}
	if !ok {
		return apperrors.NotFound(kind.String())
	}
	return nil
}

func (s *FileService) authorize(user *models.User, kind models.Kind) error {
	if user == nil {
		return apperrors.Unauthorized()
	}
	if !s.perms.CanWrite(user, kind.String()) {
		return apperrors.Forbidden()
	}
	return nil
}
