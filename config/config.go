package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	SourceWebsocket = "websocket"
	SourceHTTP      = "http"
	SourceFile      = "file"

	OutputEngine  = "engine"
	OutputCommand = "command"
	OutputLog     = "log"

	RecorderEngine     = "engine"
	RecorderHTTP       = "http"
	RecorderFile       = "file"
	RecorderMicrophone = "microphone"
)

type Config struct {
	Engine   EngineConfig   `yaml:"engine"`
	Speech   SpeechConfig   `yaml:"speech"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Device   DeviceConfig   `yaml:"device"`
	Confirm  ConfirmConfig  `yaml:"confirm"`
	System   SystemConfig   `yaml:"system"`
	Pushover PushoverConfig `yaml:"pushover"`
	Admin    AdminConfig    `yaml:"admin"`
	Log      LogConfig      `yaml:"log"`
}

type EngineConfig struct {
	Source           string `yaml:"source"`
	URL              string `yaml:"url"`
	Token            string `yaml:"token"`
	DialTimeout      string `yaml:"dial_timeout"`
	ReplyTimeout     string `yaml:"reply_timeout"`
	RecognizeTimeout string `yaml:"recognize_timeout"`
	HTTPAddr         string `yaml:"http_addr"`
	AuthToken        string `yaml:"auth_token"`
	FileDir          string `yaml:"file_dir"`
	PollInterval     string `yaml:"poll_interval"`
}

type SpeechConfig struct {
	Output           string  `yaml:"output"`
	Command          string  `yaml:"command"`
	Recorder         string  `yaml:"recorder"`
	SampleRate       int     `yaml:"sample_rate"`
	MaxAnswerSeconds float64 `yaml:"max_answer_seconds"`
}

type OpenAIConfig struct {
	APIKey   string `yaml:"api_key"`
	Language string `yaml:"language"`
	BaseURL  string `yaml:"base_url"`
}

type DeviceConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
	// WindowToken authorizes window mutations; Token is used when empty.
	WindowToken    string `yaml:"window_token"`
	IndoorID       string `yaml:"indoor_id"`
	WindowID       string `yaml:"window_id"`
	HumidityPath   string `yaml:"humidity_path"`
	Timeout        string `yaml:"timeout"`
	StartupRetries int    `yaml:"startup_retries"`
	SocksProxy     string `yaml:"socks_proxy"`
	SocksUser      string `yaml:"socks_user"`
	SocksPassword  string `yaml:"socks_password"`
}

type ConfirmConfig struct {
	SettleDelay string `yaml:"settle_delay"`
}

type SystemConfig struct {
	PowerOffCommand string `yaml:"power_off_command"`
	RebootCommand   string `yaml:"reboot_command"`
	DryRun          bool   `yaml:"dry_run"`
}

type PushoverConfig struct {
	Token   string `yaml:"token"`
	UserKey string `yaml:"user_key"`
	Enabled bool   `yaml:"enabled"`
	Title   string `yaml:"title"`
}

type AdminConfig struct {
	// Addr serves /metrics, /healthz and /readyz. Empty disables the server.
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Engine.Source == "" {
		c.Engine.Source = SourceWebsocket
	}
	if c.Engine.URL == "" {
		c.Engine.URL = "ws://127.0.0.1:8765/assistant"
	}
	if c.Engine.DialTimeout == "" {
		c.Engine.DialTimeout = "10s"
	}
	if c.Engine.ReplyTimeout == "" {
		c.Engine.ReplyTimeout = "30s"
	}
	if c.Engine.RecognizeTimeout == "" {
		c.Engine.RecognizeTimeout = "10s"
	}
	if c.Engine.HTTPAddr == "" {
		c.Engine.HTTPAddr = ":8080"
	}
	if c.Engine.FileDir == "" {
		c.Engine.FileDir = "./scripts"
	}
	if c.Engine.PollInterval == "" {
		c.Engine.PollInterval = "500ms"
	}
	if c.Speech.Output == "" {
		if c.Engine.Source == SourceWebsocket {
			c.Speech.Output = OutputEngine
		} else {
			c.Speech.Output = OutputLog
		}
	}
	if c.Speech.Command == "" {
		c.Speech.Command = "espeak-ng -v en"
	}
	if c.Speech.Recorder == "" {
		c.Speech.Recorder = defaultRecorder(c.Engine.Source)
	}
	if c.Speech.SampleRate == 0 {
		c.Speech.SampleRate = 16000
	}
	if c.Speech.MaxAnswerSeconds == 0 {
		c.Speech.MaxAnswerSeconds = 5
	}
	if c.OpenAI.Language == "" {
		c.OpenAI.Language = "en"
	}
	if c.Device.WindowToken == "" {
		c.Device.WindowToken = c.Device.Token
	}
	if c.Device.HumidityPath == "" {
		c.Device.HumidityPath = "data.attributes.FTKPlus.properties.Humidity"
	}
	if c.Device.Timeout == "" {
		c.Device.Timeout = "15s"
	}
	if c.Device.StartupRetries == 0 {
		c.Device.StartupRetries = 3
	}
	if c.Confirm.SettleDelay == "" {
		c.Confirm.SettleDelay = "500ms"
	}
	if c.System.PowerOffCommand == "" {
		c.System.PowerOffCommand = "sudo shutdown now"
	}
	if c.System.RebootCommand == "" {
		c.System.RebootCommand = "sudo reboot"
	}
	if c.Pushover.Title == "" {
		c.Pushover.Title = "Building assistant"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func defaultRecorder(source string) string {
	switch source {
	case SourceHTTP:
		return RecorderHTTP
	case SourceFile:
		return RecorderFile
	default:
		return RecorderEngine
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Device.BaseURL == "" {
		errs = append(errs, errors.New("device.base_url is required"))
	}
	if c.Device.Token == "" {
		errs = append(errs, errors.New("device.token is required"))
	}
	if c.Device.IndoorID == "" {
		errs = append(errs, errors.New("device.indoor_id is required"))
	}
	if c.Device.WindowID == "" {
		errs = append(errs, errors.New("device.window_id is required"))
	}
	if c.Device.StartupRetries < 1 {
		errs = append(errs, errors.New("device.startup_retries must be at least 1"))
	}

	errs = append(errs, oneOf("engine.source", c.Engine.Source, SourceWebsocket, SourceHTTP, SourceFile))
	errs = append(errs, oneOf("speech.output", c.Speech.Output, OutputEngine, OutputCommand, OutputLog))
	errs = append(errs, oneOf("speech.recorder", c.Speech.Recorder, RecorderEngine, RecorderHTTP, RecorderFile, RecorderMicrophone))
	errs = append(errs, oneOf("log.format", c.Log.Format, "text", "json"))
	errs = append(errs, oneOf("log.level", c.Log.Level, "debug", "info", "warn", "error"))

	if c.Engine.Source != SourceWebsocket {
		if c.Speech.Output == OutputEngine {
			errs = append(errs, fmt.Errorf("speech.output %q needs engine.source %q", OutputEngine, SourceWebsocket))
		}
		if c.Speech.Recorder == RecorderEngine {
			errs = append(errs, fmt.Errorf("speech.recorder %q needs engine.source %q", RecorderEngine, SourceWebsocket))
		}
	}
	if c.Speech.Recorder == RecorderHTTP && c.Engine.Source != SourceHTTP {
		errs = append(errs, fmt.Errorf("speech.recorder %q needs engine.source %q", RecorderHTTP, SourceHTTP))
	}
	if c.Speech.Recorder == RecorderMicrophone && c.OpenAI.APIKey == "" {
		errs = append(errs, fmt.Errorf("speech.recorder %q needs openai.api_key", RecorderMicrophone))
	}
	if c.Speech.Recorder == RecorderFile && c.Engine.Source != SourceFile {
		errs = append(errs, fmt.Errorf("speech.recorder %q needs engine.source %q", RecorderFile, SourceFile))
	}

	for name, value := range map[string]string{
		"engine.dial_timeout":      c.Engine.DialTimeout,
		"engine.reply_timeout":     c.Engine.ReplyTimeout,
		"engine.recognize_timeout": c.Engine.RecognizeTimeout,
		"engine.poll_interval":     c.Engine.PollInterval,
		"device.timeout":           c.Device.Timeout,
		"confirm.settle_delay":     c.Confirm.SettleDelay,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	return errors.Join(errs...)
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s: unknown value %q (want one of %v)", field, value, allowed)
}

// Duration parses a duration field that Validate already accepted.
func Duration(value string) time.Duration {
	d, _ := time.ParseDuration(value)
	return d
}
