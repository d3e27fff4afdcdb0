package application_test

import (
	"testing"

	"github.com/git-commit/this-building-rocks-assistant/internal/application"
	"github.com/git-commit/this-building-rocks-assistant/internal/domain"
)

func TestClassifyIntent(t *testing.T) {
	tests := []struct {
		text string
		want domain.Intent
	}{
		{"power off", domain.IntentPowerOff},
		{"Power Off", domain.IntentPowerOff},
		{"  POWER OFF ", domain.IntentPowerOff},
		{"power off now", domain.IntentUnrecognized},
		{"reboot", domain.IntentReboot},
		{"reboot now", domain.IntentUnrecognized},
		{"IP Address", domain.IntentReportIP},
		{"what is my ip address", domain.IntentUnrecognized},
		{"What's the humidity inside", domain.IntentReportHumidity},
		{"what's the humidity inside the house", domain.IntentReportHumidity},
		{"what is the humidity inside", domain.IntentUnrecognized},
		{"", domain.IntentUnrecognized},
		{"turn on the lights", domain.IntentUnrecognized},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := application.ClassifyIntent(tt.text); got != tt.want {
				t.Errorf("ClassifyIntent(%q): got %s, want %s", tt.text, got, tt.want)
			}
		})
	}
}

func TestIsAffirmative(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"yes", true},
		{"Yes please", true},
		{"oh YES", true},
		{"no", false},
		{"sure", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := application.IsAffirmative(tt.text); got != tt.want {
			t.Errorf("IsAffirmative(%q): got %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestFormatHumidity(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{55.0, "55"},
		{55.04, "55"},
		{55.06, "55.1"},
		{47.25, "47.3"},
	}

	for _, tt := range tests {
		if got := application.FormatHumidity(tt.in); got != tt.want {
			t.Errorf("FormatHumidity(%v): got %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestIntent_Irreversible(t *testing.T) {
	for _, intent := range []domain.Intent{domain.IntentPowerOff, domain.IntentReboot} {
		if !intent.Irreversible() {
			t.Errorf("%s should be irreversible", intent)
		}
	}
	for _, intent := range []domain.Intent{domain.IntentReportIP, domain.IntentReportHumidity, domain.IntentUnrecognized} {
		if intent.Irreversible() {
			t.Errorf("%s should not be irreversible", intent)
		}
	}
}
