package domain

import "time"

// DeviceSnapshot is a point-in-time numeric reading of one device
// attribute. It is fetched once at startup and never refreshed.
type DeviceSnapshot struct {
	DeviceID  string
	Attribute string
	Value     float64
	FetchedAt time.Time
}

// WindowPatch is the body sent to the device API to move the window.
type WindowPatch struct {
	Custom WindowState `json:"custom"`
}

type WindowState struct {
	Open bool `json:"open"`
}

type DeviceMutationRequest struct {
	DeviceID string
	Patch    WindowPatch
}

func OpenWindowRequest(deviceID string) DeviceMutationRequest {
	return DeviceMutationRequest{
		DeviceID: deviceID,
		Patch:    WindowPatch{Custom: WindowState{Open: true}},
	}
}
