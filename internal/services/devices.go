package services

import (
	"go.uber.org/zap"

	"infra-registry/internal/models"
	"infra-registry/internal/repository"
)

// Devices holds one DeviceService per device kind.
type Devices struct {
	byKind map[models.Kind]*DeviceService
}

func NewDevices(store repository.Store, perms *PermissionChecker, opts DeviceOptions, log *zap.Logger) *Devices {
	d := &Devices{byKind: make(map[models.Kind]*DeviceService)}
	for _, k := range models.AllKinds() {
		d.byKind[k] = NewDeviceService(k, store, perms, opts, log)
	}
	return d
}

// For returns the service of k, nil for an unknown kind.
func (d *Devices) For(k models.Kind) *DeviceService {
	return d.byKind[k]
}

// WithStore rebinds every service to st.
func (d *Devices) WithStore(st repository.Store) *Devices {
	out := &Devices{byKind: make(map[models.Kind]*DeviceService, len(d.byKind))}
	for k, svc := range d.byKind {
		out.byKind[k] = svc.WithStore(st)
	}
	return out
}
