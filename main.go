package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mahirjain10/poster-formatter/config"
	"github.com/mahirjain10/poster-formatter/internal/logging"
	"github.com/mahirjain10/poster-formatter/internal/metrics"
	"github.com/mahirjain10/poster-formatter/internal/server"
	"github.com/mahirjain10/poster-formatter/internal/session"
	"github.com/mahirjain10/poster-formatter/internal/transformation"
	"github.com/mahirjain10/poster-formatter/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const evictionInterval = time.Minute

type App struct {
	config    *config.Config
	logCloser io.Closer
	store     *session.Store
	server    *server.Server
	stopEvict func()
}

// NewApp creates and initializes a new App instance with all dependencies
func NewApp() (*App, error) {
	envConfig, err := config.InitializeEnvs()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize environment config: %w", err)
	}

	logCloser := logging.InitLogger(envConfig.LogLevel, envConfig.LogFormat, envConfig.LogFile)
	slog.Info("Application starting", "env", envConfig.AppEnv, "port", envConfig.Port)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var store *session.Store
	m := metrics.New(reg, func() int { return store.Len() })

	opts := session.Options{
		MaxPixels: envConfig.MaxSourcePixels,
		BlurSigma: envConfig.BlurSigma,
		Recorder:  m,
	}
	store = session.NewStore(envConfig.SessionTTL, envConfig.MaxSessions, clockwork.NewRealClock(), func() *session.Controller {
		return session.NewController(opts)
	})

	healthChecks := []server.HealthCheck{
		{Name: "compositor", Check: compositorSelfTest},
	}
	srv, err := server.NewServer(envConfig, store, m, reg, healthChecks)
	if err != nil {
		_ = logCloser.Close()
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	return &App{
		config:    envConfig,
		logCloser: logCloser,
		store:     store,
		server:    srv,
		stopEvict: store.StartEvictionTimer(evictionInterval),
	}, nil
}

// Close stops background work and flushes the log file.
func (a *App) Close() {
	a.stopEvict()
	if err := a.logCloser.Close(); err != nil {
		log.Printf("Error closing log file: %v", err)
	}
}

// compositorSelfTest renders a tiny poster into the smallest preset shape.
func compositorSelfTest(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src := image.NewNRGBA(image.Rect(0, 0, 2, 4))
	out := transformation.Compose(src, types.Instagram.TargetWidth/90, types.Instagram.TargetHeight/90)
	if out.Bounds().Dx() != 12 || out.Bounds().Dy() != 15 {
		return fmt.Errorf("unexpected output size %v", out.Bounds())
	}
	return nil
}

func runGracefulShutdown(app *App) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	app, err := NewApp()
	if err != nil {
		// slog may not be configured yet
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.Close()

	done := runGracefulShutdown(app)

	if err := app.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		app.Close()
		os.Exit(1)
	}

	<-done
	slog.Info("Server stopped", "sessions", app.store.Len())
}
