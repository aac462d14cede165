package server

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/mahirjain10/poster-formatter/config"
	"github.com/mahirjain10/poster-formatter/internal/metrics"
	"github.com/mahirjain10/poster-formatter/internal/session"
	"github.com/mahirjain10/poster-formatter/internal/types"
	"github.com/prometheus/client_golang/prometheus"
)

//go:embed templates/*.html
var templateFiles embed.FS

type Server struct {
	echo   *echo.Echo
	config *config.Config

	store        *session.Store
	cookies      *sessions.CookieStore
	metrics      *metrics.Metrics
	gatherer     prometheus.Gatherer
	templates    *template.Template
	healthChecks []HealthCheck
	startTime    time.Time
}

func NewServer(cfg *config.Config, store *session.Store, m *metrics.Metrics, gatherer prometheus.Gatherer, healthChecks []HealthCheck) (*Server, error) {
	templates, err := template.ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:         e,
		config:       cfg,
		store:        store,
		cookies:      setupCookieStore(cfg),
		metrics:      m,
		gatherer:     gatherer,
		templates:    templates,
		healthChecks: healthChecks,
		startTime:    time.Now(),
	}

	srv.registerRoutes()

	return srv, nil
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP lets tests drive the full middleware stack.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Session keys
const (
	sessionName  = "poster-session"
	sessionKeyID = "sid"
)

// lookup resolves the browser's session from its cookie. It never creates
// one, so read-only requests do not allocate server state.
func (s *Server) lookup(c echo.Context) (*session.Controller, bool) {
	sess, _ := s.cookies.Get(c.Request(), sessionName)
	raw, ok := sess.Values[sessionKeyID].(string)
	if !ok {
		return nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, false
	}
	return s.store.Get(id)
}

// controller resolves the browser's session, creating one (and setting the
// cookie) when the cookie is missing, invalid or its session expired.
func (s *Server) controller(c echo.Context) (*session.Controller, error) {
	if ctrl, ok := s.lookup(c); ok {
		return ctrl, nil
	}

	id, ctrl, err := s.store.Create()
	if err != nil {
		slog.Warn("Session not created", "error", err)
		return nil, echo.NewHTTPError(http.StatusServiceUnavailable, "server is busy, try again later")
	}
	sess, _ := s.cookies.Get(c.Request(), sessionName)
	sess.Values[sessionKeyID] = id.String()
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		s.store.Delete(id)
		return nil, fmt.Errorf("failed to save session cookie: %w", err)
	}
	slog.Debug("Session created", "session_id", id)
	return ctrl, nil
}

// snapshot is the session state for read-only views; a browser without a
// live session sees an empty one.
func (s *Server) snapshot(c echo.Context) session.Snapshot {
	if ctrl, ok := s.lookup(c); ok {
		return ctrl.Snapshot()
	}
	return session.Snapshot{State: types.EMPTY}
}

func (s *Server) renderTemplate(c echo.Context, name string, data any) error {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("Template execution failed", "path", c.Request().URL.Path, "error", err)
		if err := c.String(http.StatusInternalServerError, "Failed to render page"); err != nil {
			return fmt.Errorf("failed to send error response: %w", err)
		}
		return nil
	}
	if err := c.HTMLBlob(http.StatusOK, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to send HTML response: %w", err)
	}
	return nil
}

func setupCookieStore(cfg *config.Config) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}
	return store
}
