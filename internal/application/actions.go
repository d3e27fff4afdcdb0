package application

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/git-commit/this-building-rocks-assistant/internal/domain"
)

const (
	PhrasePowerOff = "Good bye!"
	PhraseReboot   = "See you in a bit!"
)

// Actions are the handlers behind each recognized intent. Irreversible
// actions speak their acknowledgement before acting.
type Actions struct {
	system   SystemController
	voice    *voice
	snapshot domain.DeviceSnapshot
	confirm  *ConfirmationDialog
}

// PowerOff says goodbye and shuts the host down.
func (a *Actions) PowerOff(ctx context.Context) error {
	a.voice.say(ctx, PhrasePowerOff)
	if err := a.system.PowerOff(ctx); err != nil {
		return fmt.Errorf("powering off: %w", err)
	}
	return nil
}

// Reboot says goodbye and restarts the host.
func (a *Actions) Reboot(ctx context.Context) error {
	a.voice.say(ctx, PhraseReboot)
	if err := a.system.Reboot(ctx); err != nil {
		return fmt.Errorf("rebooting: %w", err)
	}
	return nil
}

// ReportIP speaks the host's local IPv4 address.
func (a *Actions) ReportIP(ctx context.Context) error {
	ip, err := a.system.LocalIP(ctx)
	if err != nil {
		return fmt.Errorf("looking up ip address: %w", err)
	}
	a.voice.say(ctx, fmt.Sprintf("My IP address is %s", ip))
	return nil
}

// ReportHumidity speaks the startup reading and then runs the window
// confirmation.
func (a *Actions) ReportHumidity(ctx context.Context) Outcome {
	a.voice.say(ctx, HumidityPhrase(a.snapshot.Value))
	return a.confirm.Run(ctx)
}

func HumidityPhrase(value float64) string {
	return "The humidity is at " + FormatHumidity(value) + " percent! Can I open up the window for you?"
}

// FormatHumidity rounds to one decimal and drops a trailing ".0".
func FormatHumidity(value float64) string {
	return strconv.FormatFloat(math.Round(value*10)/10, 'f', -1, 64)
}
