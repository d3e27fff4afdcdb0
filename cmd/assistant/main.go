package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/git-commit/this-building-rocks-assistant/config"
	"github.com/git-commit/this-building-rocks-assistant/internal/application"
	"github.com/git-commit/this-building-rocks-assistant/internal/domain"
	"github.com/git-commit/this-building-rocks-assistant/internal/health"
	"github.com/git-commit/this-building-rocks-assistant/internal/infra"
	"github.com/git-commit/this-building-rocks-assistant/internal/infra/audio"
	"github.com/git-commit/this-building-rocks-assistant/internal/infra/engine"
	"github.com/git-commit/this-building-rocks-assistant/internal/infra/oltd"
	"github.com/git-commit/this-building-rocks-assistant/internal/infra/openai"
	"github.com/git-commit/this-building-rocks-assistant/internal/infra/proxy"
	"github.com/git-commit/this-building-rocks-assistant/internal/infra/pushover"
	"github.com/git-commit/this-building-rocks-assistant/internal/infra/speech"
	"github.com/git-commit/this-building-rocks-assistant/internal/infra/system"
	"github.com/git-commit/this-building-rocks-assistant/internal/observe"
)

var version = "dev"

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func main() {
	os.Exit(run())
}

func run() int {
	configPath := pflag.StringP("config", "c", "config.yaml", "path to config file")
	envFile := pflag.StringP("env", "e", ".env", "env file with secrets")
	logLevel := pflag.StringP("log-level", "l", "", "override log.level")
	pflag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("loading env file", "path", *envFile, "error", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		return 1
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		return 1
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "rocks-assistant",
		ServiceVersion: version,
	})
	if err != nil {
		logger.Error("initializing telemetry", "error", err)
		return 1
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("flushing telemetry", "error", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	indoor, window, err := deviceClients(cfg.Device, metrics)
	if err != nil {
		logger.Error("creating device clients", "error", err)
		return 1
	}

	retry := infra.DefaultRetryConfig()
	retry.MaxAttempts = cfg.Device.StartupRetries
	snapshot, err := oltd.FetchSnapshot(ctx, indoor, cfg.Device.IndoorID, cfg.Device.HumidityPath, retry, logger)
	if err != nil {
		logger.Error("loading indoor humidity", "device_id", cfg.Device.IndoorID, "error", err)
		return 1
	}

	var notifier application.Notifier = &application.NoopNotifier{}
	if cfg.Pushover.Enabled {
		notifier = pushover.NewClient(cfg.Pushover.Token, cfg.Pushover.UserKey, pushover.WithTitle(cfg.Pushover.Title))
	}

	ports, sourceCheck, err := buildPorts(cfg, logger)
	if err != nil {
		logger.Error("creating speech components", "error", err)
		return 1
	}
	ports.Window = window
	ports.Notifier = notifier
	ports.System = system.NewController(system.Config{
		PowerOffCommand: cfg.System.PowerOffCommand,
		RebootCommand:   cfg.System.RebootCommand,
		DryRun:          cfg.System.DryRun,
	}, logger)

	dispatcher := application.NewDispatcher(
		ports,
		snapshot,
		application.Settings{
			Confirm: application.ConfirmConfig{
				WindowDeviceID: cfg.Device.WindowID,
				SettleDelay:    config.Duration(cfg.Confirm.SettleDelay),
			},
			Interactive: isTerminal(os.Stdout),
			HintOut:     os.Stdout,
		},
		logger,
		application.WithMetrics(metrics),
	)

	logger.Info("starting building assistant",
		"version", version,
		"source", cfg.Engine.Source,
		"speech", cfg.Speech.Output,
		"recorder", cfg.Speech.Recorder,
		"humidity", snapshot.Value,
	)

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Admin.Addr != "" {
		checks := health.New()
		checks.Add("session", dispatcher.Ready)
		if sourceCheck != nil {
			checks.Add("engine", sourceCheck)
		}
		serveAdmin(gctx, g, cfg.Admin.Addr, checks, logger)
	}
	g.Go(func() error {
		err := dispatcher.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, domain.ErrFatalAssistant) {
			logger.Error("assistant stopped after a fatal engine error")
		} else {
			logger.Error("assistant error", "error", err)
		}
		return 1
	}
	return 0
}

func deviceClients(cfg config.DeviceConfig, metrics *observe.Metrics) (indoor, window *oltd.Client, err error) {
	transport := http.DefaultTransport
	if cfg.SocksProxy != "" {
		t, err := proxy.NewSocksTransport(cfg.SocksProxy, cfg.SocksUser, cfg.SocksPassword)
		if err != nil {
			return nil, nil, err
		}
		transport = t
	}

	opts := []oltd.Option{
		oltd.WithTransport(transport),
		oltd.WithTimeout(config.Duration(cfg.Timeout)),
		oltd.WithMetrics(metrics),
	}
	return oltd.NewClient(cfg.BaseURL, cfg.Token, opts...),
		oltd.NewClient(cfg.BaseURL, cfg.WindowToken, opts...),
		nil
}

// buildPorts wires the event source, speaker, recorder, status indicator
// and conversation control for the configured mode. The returned check
// reports whether the event source is usable.
func buildPorts(cfg *config.Config, logger *slog.Logger) (application.Ports, health.Check, error) {
	var (
		ports   application.Ports
		check   health.Check
		bridge  *engine.Bridge
		httpSrc *audio.HTTPSource
		fileSrc *audio.FileSource
	)

	switch cfg.Engine.Source {
	case config.SourceWebsocket:
		bridge = engine.NewBridge(engine.Config{
			URL:              cfg.Engine.URL,
			Token:            cfg.Engine.Token,
			DialTimeout:      config.Duration(cfg.Engine.DialTimeout),
			ReplyTimeout:     config.Duration(cfg.Engine.ReplyTimeout),
			RecognizeTimeout: config.Duration(cfg.Engine.RecognizeTimeout),
		}, logger)
		ports.Events = bridge
		ports.Status = bridge
		ports.Conversation = bridge
		check = bridge.Connected
	case config.SourceHTTP:
		httpSrc = audio.NewHTTPSource(cfg.Engine.HTTPAddr, cfg.Engine.AuthToken, config.Duration(cfg.Engine.RecognizeTimeout), logger)
		ports.Events = httpSrc
	case config.SourceFile:
		fileSrc = audio.NewFileSource(cfg.Engine.FileDir, config.Duration(cfg.Engine.PollInterval), logger)
		ports.Events = fileSrc
	default:
		return ports, nil, fmt.Errorf("unknown engine source %q", cfg.Engine.Source)
	}
	if ports.Status == nil {
		ports.Status = speech.NewLogStatus(logger)
	}

	switch cfg.Speech.Output {
	case config.OutputEngine:
		ports.Speaker = bridge
	case config.OutputCommand:
		s, err := speech.NewCommandSpeaker(cfg.Speech.Command)
		if err != nil {
			return ports, nil, err
		}
		ports.Speaker = s
	default:
		ports.Speaker = speech.NewLogSpeaker(logger)
	}

	switch cfg.Speech.Recorder {
	case config.RecorderEngine:
		ports.Recorder = bridge
	case config.RecorderHTTP:
		ports.Recorder = httpSrc
	case config.RecorderFile:
		ports.Recorder = fileSrc
	case config.RecorderMicrophone:
		var opts []openai.Option
		if cfg.OpenAI.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAI.BaseURL))
		}
		stt := openai.NewWhisperClient(cfg.OpenAI.APIKey, cfg.OpenAI.Language, opts...)
		ports.Recorder = audio.NewMicrophoneRecorder(cfg.Speech.SampleRate, cfg.Speech.MaxAnswerSeconds, stt, logger)
	}

	return ports, check, nil
}

func serveAdmin(ctx context.Context, g *errgroup.Group, addr string, checks *health.Handler, logger *slog.Logger) {
	mux := http.NewServeMux()
	checks.Register(mux)
	mux.Handle("GET /metrics", observe.MetricsHandler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		logger.Info("admin server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("admin server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	level, ok := logLevels[cfg.Level]
	if !ok {
		level = slog.LevelInfo
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.DateTime,
			NoColor:    !isTerminal(os.Stdout),
		})
	}

	return slog.New(handler)
}
