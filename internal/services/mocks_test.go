package services

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"infra-registry/internal/models"
)

type mockObjectStore struct {
	mock.Mock
}

func (m *mockObjectStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if r != nil {
		_, _ = io.Copy(io.Discard, r)
	}
	args := m.Called(ctx, key, size, contentType)
	return args.Error(0)
}

func (m *mockObjectStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	if rc, ok := args.Get(0).(io.ReadCloser); ok {
		return rc, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockObjectStore) Remove(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

type mockFileStore struct {
	mock.Mock
}

func (m *mockFileStore) CreateFile(ctx context.Context, file *models.DeviceFile) error {
	args := m.Called(ctx, file)
	return args.Error(0)
}

func (m *mockFileStore) GetFile(ctx context.Context, kind models.Kind, deviceID, fileID uuid.UUID) (*models.DeviceFile, error) {
	args := m.Called(ctx, kind, deviceID, fileID)
	if f, ok := args.Get(0).(*models.DeviceFile); ok {
		return f, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockFileStore) ListFiles(ctx context.Context, kind models.Kind, deviceID uuid.UUID) ([]models.DeviceFile, error) {
	args := m.Called(ctx, kind, deviceID)
	if files, ok := args.Get(0).([]models.DeviceFile); ok {
		return files, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockFileStore) UpdateFile(ctx context.Context, file *models.DeviceFile) error {
	args := m.Called(ctx, file)
	return args.Error(0)
}

func (m *mockFileStore) DeleteFile(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockOperationStore struct {
	mock.Mock
}

func (m *mockOperationStore) List(ctx context.Context, kind models.Kind, deviceID uuid.UUID) ([]models.DeviceOperation, error) {
	args := m.Called(ctx, kind, deviceID)
	if ops, ok := args.Get(0).([]models.DeviceOperation); ok {
		return ops, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOperationStore) Get(ctx context.Context, kind models.Kind, deviceID, id uuid.UUID) (*models.DeviceOperation, error) {
	args := m.Called(ctx, kind, deviceID, id)
	if op, ok := args.Get(0).(*models.DeviceOperation); ok {
		return op, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOperationStore) Create(ctx context.Context, op *models.DeviceOperation) error {
	args := m.Called(ctx, op)
	return args.Error(0)
}

func (m *mockOperationStore) Update(ctx context.Context, op *models.DeviceOperation) error {
	args := m.Called(ctx, op)
	return args.Error(0)
}

type mockCatalog[M any] struct {
	mock.Mock
}

func (m *mockCatalog[M]) Get(ctx context.Context, id uuid.UUID) (*M, error) {
	args := m.Called(ctx, id)
	if row, ok := args.Get(0).(*M); ok {
		return row, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCatalog[M]) FindBy(ctx context.Context, column string, value interface{}) (*M, error) {
	args := m.Called(ctx, column, value)
	if row, ok := args.Get(0).(*M); ok {
		return row, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCatalog[M]) List(ctx context.Context, orderBy string) ([]M, error) {
	args := m.Called(ctx, orderBy)
	if rows, ok := args.Get(0).([]M); ok {
		return rows, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCatalog[M]) Create(ctx context.Context, row *M) error {
	args := m.Called(ctx, row)
	return args.Error(0)
}

func (m *mockCatalog[M]) Save(ctx context.Context, row *M) error {
	args := m.Called(ctx, row)
	return args.Error(0)
}

func (m *mockCatalog[M]) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}
