// Package speech provides local speech output and status indicators for
// setups that do not route them through the assistant engine.
package speech

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/git-commit/this-building-rocks-assistant/internal/domain"
)

// LogSpeaker writes what would be spoken to the log.
type LogSpeaker struct {
	logger *slog.Logger
}

func NewLogSpeaker(logger *slog.Logger) *LogSpeaker {
	return &LogSpeaker{logger: logger}
}

func (s *LogSpeaker) Speak(_ context.Context, text string) error {
	s.logger.Info("say", "text", text)
	return nil
}

// CommandSpeaker runs an external text-to-speech program such as
// espeak-ng, passing the text as the last argument.
type CommandSpeaker struct {
	name string
	args []string
}

// NewCommandSpeaker parses command into a program and its arguments.
func NewCommandSpeaker(command string) (*CommandSpeaker, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty speech command")
	}
	return &CommandSpeaker{name: fields[0], args: fields[1:]}, nil
}

func (s *CommandSpeaker) Speak(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	args := append(append([]string(nil), s.args...), text)
	cmd := exec.CommandContext(ctx, s.name, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("running %s: %w: %s", s.name, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// LogStatus reports phase changes in the log in place of a status LED.
type LogStatus struct {
	logger *slog.Logger
}

func NewLogStatus(logger *slog.Logger) *LogStatus {
	return &LogStatus{logger: logger}
}

func (s *LogStatus) SetStatus(_ context.Context, phase domain.Phase) error {
	s.logger.Info("status", "phase", phase)
	return nil
}
