package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-ps"

	"wakemeup/internal/api"
	"wakemeup/internal/broker"
	"wakemeup/internal/config"
	"wakemeup/internal/engine"
	"wakemeup/internal/location"
	"wakemeup/internal/logger"
	"wakemeup/internal/metrics"
	"wakemeup/internal/placelookup"
	"wakemeup/internal/repository/alarms"
	"wakemeup/internal/store"
)

// Options controls the wakemeupd process and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override.
	ListenAddress string
	// StateFile specifies the path to persist the alarm collection JSON.
	StateFile string
	// ReplayTrack optionally names a JSON track file to replay instead of
	// accepting pushed positions, for demos and soak runs.
	ReplayTrack string
	// ReplayInterval is the spacing between replayed samples.
	ReplayInterval time.Duration
}

// ErrAlreadyRunning indicates another daemon instance owns the state file.
var ErrAlreadyRunning = errors.New("another wakemeupd instance is already running")

// shutdownTimeout bounds the HTTP server's graceful drain.
const shutdownTimeout = 10 * time.Second

// Run starts the daemon and blocks until the context is canceled.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "wakemeupd")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if level, ok := logger.ParseLogLevel(settings.LogLevel); ok {
		logger.SetLevel(level)
	}

	if err = ensureSingleInstance(); err != nil {
		return err
	}

	listenAddress := settings.ListenAddress
	if opts.ListenAddress != "" {
		listenAddress = opts.ListenAddress
	}

	stateFile := settings.StateFile
	if opts.StateFile != "" {
		stateFile = opts.StateFile
	}

	metrics.RegisterDefault()

	st := store.New(alarms.NewFileRepository(stateFile))

	provider, push, err := buildProvider(opts, settings)
	if err != nil {
		return err
	}

	session := location.NewSession(provider,
		location.Settings{
			Accuracy:          location.Accuracy(settings.Location.Accuracy),
			Interval:          settings.Location.Interval,
			MinDistanceMeters: settings.Location.MinDistanceMeters,
		},
		location.WithOneShotTimeout(settings.Location.OneShotTimeout),
		location.WithSettleDelay(settings.Location.PermissionSettleDelay),
	)

	events, err := buildBroker(ctx, settings)
	if err != nil {
		return err
	}

	svc := NewService(st, session, engine.New(st), events, settings.Location.PollInterval)
	if err = svc.Initialize(ctx); err != nil {
		return err
	}

	defer svc.Dispose()

	places, err := buildPlacesClient(ctx, settings)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              listenAddress,
		Handler:           api.NewServer(svc, push, events, places).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.InfoKV(ctx, "Alarm daemon listening",
		"listen_address", listenAddress,
		"state_file", stateFile,
	)

	// Done channel is closed after Shutdown finishes so we block until the
	// server fully drains before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WarnKV(ctx, "HTTP shutdown incomplete", "error", err)
		}

		close(done)
	}()

	if err = server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve HTTP: %w", err)
	}

	<-done
	logger.Info(ctx, "HTTP server stopped")

	return nil
}

// buildProvider picks the position source: a replayed track when requested,
// otherwise the push-fed provider the API surface writes into.
func buildProvider(opts *Options, settings *config.Config) (location.Provider, *location.PushProvider, error) {
	if opts.ReplayTrack == "" {
		push := location.NewPushProvider()

		return push, push, nil
	}

	track, err := location.LoadTrack(opts.ReplayTrack)
	if err != nil {
		return nil, nil, fmt.Errorf("load replay track: %w", err)
	}

	interval := opts.ReplayInterval
	if interval <= 0 {
		interval = settings.Location.Interval
	}

	replay, err := location.NewReplayProvider(track, interval)
	if err != nil {
		return nil, nil, fmt.Errorf("build replay provider: %w", err)
	}

	return replay, nil, nil
}

// buildBroker returns the Redis-backed broker when configured, otherwise the
// in-process one.
func buildBroker(ctx context.Context, settings *config.Config) (broker.Broker, error) {
	if settings.RedisURL == "" {
		return broker.NewMemoryBroker(), nil
	}

	events, err := broker.NewRedisBroker(settings.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("connect trigger broker: %w", err)
	}

	logger.Info(ctx, "Trigger events fan out through Redis")

	return events, nil
}

// buildPlacesClient returns nil when no API key is configured; the place
// endpoints then answer 503.
func buildPlacesClient(ctx context.Context, settings *config.Config) (*placelookup.Client, error) {
	if settings.Places.APIKey == "" {
		logger.Info(ctx, "Place lookup disabled: no API key configured")

		return nil, nil
	}

	places, err := placelookup.NewClient(
		settings.Places.BaseURL,
		settings.Places.APIKey,
		settings.Places.RequestsPerSecond,
	)
	if err != nil {
		return nil, fmt.Errorf("build places client: %w", err)
	}

	return places, nil
}

// ensureSingleInstance scans the process table for another copy of this
// executable. Two daemons writing the same state file would corrupt it.
func ensureSingleInstance() error {
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	executableName := filepath.Base(executable)

	processList, err := ps.Processes()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	thisProcessID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() == executableName {
			return fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, process.Pid())
		}
	}

	return nil
}
