package domain

import "errors"

var (
	ErrDeviceNotFound    = errors.New("device not found")
	ErrAuthFailed        = errors.New("device api rejected credentials")
	ErrNetwork           = errors.New("device api unreachable")
	ErrMalformedResponse = errors.New("malformed device api response")

	ErrFatalAssistant     = errors.New("fatal assistant error")
	ErrStreamClosed       = errors.New("event stream closed")
	ErrUnknownEvent       = errors.New("unknown event type")
	ErrNoRecordingSession = errors.New("no recording session open")
	ErrRecordingBusy      = errors.New("recording session already open")
)

// DeviceErrorKind maps a device client error to a short label for logs
// and metrics.
func DeviceErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrDeviceNotFound):
		return "not_found"
	case errors.Is(err, ErrAuthFailed):
		return "auth_failed"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	default:
		return "other"
	}
}
