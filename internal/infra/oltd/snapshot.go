package oltd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/git-commit/this-building-rocks-assistant/internal/domain"
	"github.com/git-commit/this-building-rocks-assistant/internal/infra"
)

// DefaultHumidityPath locates the humidity reading in the indoor unit's
// state document.
const DefaultHumidityPath = "data.attributes.FTKPlus.properties.Humidity"

type DeviceGetter interface {
	GetDevice(ctx context.Context, deviceID string) (json.RawMessage, error)
}

// FetchSnapshot reads one numeric attribute of a device, retrying
// transient failures. The value is rounded to one decimal.
func FetchSnapshot(
	ctx context.Context,
	devices DeviceGetter,
	deviceID string,
	path string,
	retry infra.RetryConfig,
	logger *slog.Logger,
) (domain.DeviceSnapshot, error) {
	if path == "" {
		path = DefaultHumidityPath
	}
	if retry.Retryable == nil {
		retry.Retryable = Retryable
	}
	if retry.OnRetry == nil {
		retry.OnRetry = func(attempt int, err error, wait time.Duration) {
			logger.Warn("device state fetch failed, retrying",
				"device_id", deviceID,
				"attempt", attempt,
				"wait", wait,
				"error", err,
			)
		}
	}

	var raw json.RawMessage
	err := infra.WithRetry(ctx, retry, func(ctx context.Context) error {
		var err error
		raw, err = devices.GetDevice(ctx, deviceID)
		return err
	})
	if err != nil {
		return domain.DeviceSnapshot{}, fmt.Errorf("fetching snapshot: %w", err)
	}

	value, err := ExtractNumber(raw, path)
	if err != nil {
		return domain.DeviceSnapshot{}, fmt.Errorf("device %s: %w", deviceID, err)
	}

	snap := domain.DeviceSnapshot{
		DeviceID:  deviceID,
		Attribute: path[strings.LastIndex(path, ".")+1:],
		Value:     math.Round(value*10) / 10,
		FetchedAt: time.Now(),
	}
	logger.Info("device snapshot loaded",
		"device_id", deviceID,
		"attribute", snap.Attribute,
		"value", snap.Value,
	)
	return snap, nil
}

// ExtractNumber reads the number at a gjson path.
func ExtractNumber(doc []byte, path string) (float64, error) {
	res := gjson.GetBytes(doc, path)
	if !res.Exists() {
		return 0, fmt.Errorf("%w: %s missing", domain.ErrMalformedResponse, path)
	}
	if res.Type != gjson.Number {
		return 0, fmt.Errorf("%w: %s is %s, not a number", domain.ErrMalformedResponse, path, res.Type)
	}
	return res.Float(), nil
}
