package application

import (
	"context"
	"encoding/json"

	"github.com/git-commit/this-building-rocks-assistant/internal/domain"
)

// DeviceClient reads and mutates remote device state. Implementations do
// not retry; errors wrap the domain sentinels (ErrDeviceNotFound,
// ErrAuthFailed, ErrNetwork, ErrMalformedResponse).
type DeviceClient interface {
	GetDevice(ctx context.Context, deviceID string) (json.RawMessage, error)
	PatchDevice(ctx context.Context, req domain.DeviceMutationRequest) error
}

// SystemController performs host-level actions.
type SystemController interface {
	PowerOff(ctx context.Context) error
	Reboot(ctx context.Context) error
	LocalIP(ctx context.Context) (string, error)
}
