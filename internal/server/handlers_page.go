package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/mahirjain10/poster-formatter/internal/session"
	"github.com/mahirjain10/poster-formatter/internal/types"
	"github.com/mahirjain10/poster-formatter/internal/utils"
)

type pageData struct {
	CSRFToken string
	Status    *types.StatusData
	Presets   []types.Preset
	Current   *types.Preset
	HasImage  bool
}

func (s *Server) handleIndex(c echo.Context) error {
	snap := s.snapshot(c)

	token, _ := c.Get(csrfContextKey).(string)
	data := pageData{
		CSRFToken: token,
		Status:    utils.InitStatusData(snap),
		Presets:   types.Presets(),
		Current:   snap.Preset,
		HasImage:  snap.State != types.EMPTY,
	}
	return s.renderTemplate(c, "index.html", data)
}

func (s *Server) handleUpload(c echo.Context) error {
	fh, err := c.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing image file")
	}
	buffer, err := utils.ReadImageBuffer(fh, s.config.MaxUploadBytes)
	if errors.Is(err, types.ErrTooLarge) {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "image too large")
	}
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}

	ctrl, err := s.controller(c)
	if err != nil {
		return err
	}
	_, err = ctrl.Upload(c.Request().Context(), buffer)

	switch {
	case err == nil:
		slog.Info("Image uploaded", "file", fh.Filename, "bytes", len(buffer))
	case errors.Is(err, types.ErrDecode), errors.Is(err, types.ErrTooLarge):
		// No preview is produced; the page simply shows no image.
		if errors.Is(err, types.ErrTooLarge) {
			slog.Warn("Upload rejected: image exceeds pixel limit", "file", fh.Filename, "max_pixels", s.config.MaxSourcePixels, "error", err)
		} else {
			slog.Info("Upload rejected: image could not be decoded", "file", fh.Filename, "error", err)
		}
		if wantsJSON(c) {
			return echo.NewHTTPError(errorStatus(err), err.Error())
		}
	case errors.Is(err, types.ErrSuperseded):
		slog.Debug("Upload superseded", "file", fh.Filename)
	default:
		return fmt.Errorf("upload failed: %w", err)
	}

	return s.respondState(c, ctrl.Snapshot())
}

func (s *Server) handlePreset(c echo.Context) error {
	preset, err := types.PresetByName(c.Param("name"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	ctrl, ok := s.lookup(c)
	if !ok {
		return echo.NewHTTPError(http.StatusConflict, "upload an image first")
	}

	_, err = ctrl.SelectPreset(c.Request().Context(), preset)
	switch {
	case err == nil, errors.Is(err, types.ErrSuperseded):
	case errors.Is(err, types.ErrNoImage):
		return echo.NewHTTPError(http.StatusConflict, "upload an image first")
	default:
		return fmt.Errorf("select preset %s: %w", preset.Name, err)
	}

	return s.respondState(c, ctrl.Snapshot())
}

// respondState redirects browsers back to the page and answers API clients
// with the session state.
func (s *Server) respondState(c echo.Context, snap session.Snapshot) error {
	if wantsJSON(c) {
		return c.JSON(http.StatusOK, utils.InitStatusData(snap))
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

func wantsJSON(c echo.Context) bool {
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON)
}

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, types.ErrUnknownPreset):
		return http.StatusNotFound
	case errors.Is(err, types.ErrNoImage), errors.Is(err, types.ErrNoPreset), errors.Is(err, types.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, types.ErrDecode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, types.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, types.ErrSessionLimit):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
