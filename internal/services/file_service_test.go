package services

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"infra-registry/internal/apperrors"
	"infra-registry/internal/models"
)

func TestFileKey(t *testing.T) {
	dev, file := uuid.New(), uuid.New()
	assert.Equal(t, "files/traffic_sign_real/"+dev.String()+"/"+file.String()+".jpg",
		FileKey(models.TrafficSignRealKind, dev, file, "IMG_001.JPG"))
}

func TestAttachFiles(t *testing.T) {
	f := newFixture(t)
	deviceID := f.mustCreate(t, f.signReal(nil))
	objects := &mockObjectStore{}
	files := &mockFileStore{}
	svc := NewFileService(files, f.store.Tables(), objects, f.checker, zap.NewNop())

	objects.On("Put", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "files/traffic_sign_real/"+deviceID.String()+"/") && strings.HasSuffix(key, ".pdf")
	}), int64(4), "application/pdf").Return(nil).Once()
	files.On("CreateFile", mock.Anything, mock.MatchedBy(func(file *models.DeviceFile) bool {
		return file.DeviceID == deviceID && file.OriginalFilename == "permit.pdf" && !file.IsPublic
	})).Return(nil).Once()

	private := false
	out, err := svc.Attach(f.ctx, f.admin, models.TrafficSignRealKind, deviceID, []Upload{{
		Filename:    "scans/permit.pdf",
		ContentType: "application/pdf",
		Size:        4,
		Body:        strings.NewReader("%PDF"),
		IsPublic:    &private,
	}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, f.admin.ID, *out[0].CreatedByID)
	objects.AssertExpectations(t)
	files.AssertExpectations(t)
}

func TestAttachFilesErrors(t *testing.T) {
	f := newFixture(t)
	deviceID := f.mustCreate(t, f.signReal(nil))
	svc := NewFileService(&mockFileStore{}, f.store.Tables(), &mockObjectStore{}, f.checker, zap.NewNop())

	_, err := svc.Attach(f.ctx, nil, models.TrafficSignRealKind, deviceID, nil)
	assert.True(t, apperrors.Is(err, apperrors.KindUnauthorized))

	_, err = svc.Attach(f.ctx, f.admin, models.TrafficSignRealKind, uuid.New(), []Upload{{Filename: "a.jpg"}})
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	_, err = svc.Attach(f.ctx, f.admin, models.TrafficSignRealKind, deviceID, nil)
	assert.Contains(t, apperrors.Fields(err), "file")
}

func TestAttachRemovesObjectWhenMetadataFails(t *testing.T) {
	f := newFixture(t)
	deviceID := f.mustCreate(t, f.signReal(nil))
	objects := &mockObjectStore{}
	files := &mockFileStore{}
	svc := NewFileService(files, f.store.Tables(), objects, f.checker, zap.NewNop())

	objects.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	objects.On("Remove", mock.Anything, mock.Anything).Return(nil).Once()
	files.On("CreateFile", mock.Anything, mock.Anything).Return(errors.New("db down"))

	_, err := svc.Attach(f.ctx, f.admin, models.TrafficSignRealKind, deviceID, []Upload{{Filename: "a.jpg", Body: strings.NewReader("x"), Size: 1}})
	assert.Error(t, err)
	objects.AssertExpectations(t)
}

func TestListAndOpenHidePrivateFilesFromAnonymous(t *testing.T) {
	f := newFixture(t)
	deviceID := f.mustCreate(t, f.signReal(nil))
	objects := &mockObjectStore{}
	files := &mockFileStore{}
	svc := NewFileService(files, f.store.Tables(), objects, f.checker, zap.NewNop())

	public := models.DeviceFile{ID: uuid.New(), DeviceID: deviceID, StorageKey: "files/a.jpg", IsPublic: true}
	hidden := models.DeviceFile{ID: uuid.New(), DeviceID: deviceID, StorageKey: "files/b.jpg"}
	files.On("ListFiles", mock.Anything, models.TrafficSignRealKind, deviceID).
		Return([]models.DeviceFile{public, hidden}, nil)
	files.On("GetFile", mock.Anything, models.TrafficSignRealKind, deviceID, hidden.ID).Return(&hidden, nil)
	files.On("GetFile", mock.Anything, models.TrafficSignRealKind, deviceID, public.ID).Return(&public, nil)
	files.On("GetFile", mock.Anything, models.TrafficSignRealKind, deviceID, mock.Anything).Return(nil, gorm.ErrRecordNotFound)
	objects.On("Get", mock.Anything, "files/a.jpg").Return(io.NopCloser(strings.NewReader("jpg")), nil)

	listed, err := svc.List(f.ctx, f.admin, models.TrafficSignRealKind, deviceID)
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	_, _, err = svc.Open(f.ctx, nil, models.TrafficSignRealKind, deviceID, hidden.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	file, rc, err := svc.Open(f.ctx, nil, models.TrafficSignRealKind, deviceID, public.ID)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, public.ID, file.ID)

	_, _, err = svc.Open(f.ctx, f.admin, models.TrafficSignRealKind, deviceID, uuid.New())
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestDetachFile(t *testing.T) {
	f := newFixture(t)
	deviceID := f.mustCreate(t, f.signReal(nil))
	objects := &mockObjectStore{}
	files := &mockFileStore{}
	svc := NewFileService(files, f.store.Tables(), objects, f.checker, zap.NewNop())

	stored := &models.DeviceFile{ID: uuid.New(), DeviceID: deviceID, StorageKey: "files/c.png"}
	files.On("GetFile", mock.Anything, models.TrafficSignRealKind, deviceID, stored.ID).Return(stored, nil)
	files.On("DeleteFile", mock.Anything, stored.ID).Return(nil).Once()
	objects.On("Remove", mock.Anything, "files/c.png").Return(errors.New("gone")).Once()

	require.NoError(t, svc.Detach(f.ctx, f.admin, models.TrafficSignRealKind, deviceID, stored.ID))
	files.AssertExpectations(t)
	objects.AssertExpectations(t)
}
