package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/mahirjain10/poster-formatter/internal/session"
	"github.com/mahirjain10/poster-formatter/internal/types"
	"github.com/mahirjain10/poster-formatter/internal/utils"
)

func (s *Server) handlePreview(c echo.Context) error {
	r, err := s.currentOutput(c)
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, no-store")
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", r.Preset.DownloadName))
	return c.Blob(http.StatusOK, "image/png", r.PNG)
}

func (s *Server) handleDownload(c echo.Context) error {
	r, err := s.currentOutput(c)
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, no-store")
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", r.Preset.DownloadName))
	return c.Blob(http.StatusOK, "image/png", r.PNG)
}

func (s *Server) handleState(c echo.Context) error {
	return c.JSON(http.StatusOK, utils.InitStatusData(s.snapshot(c)))
}

// currentOutput returns the rendered output named by the :generation and
// :name path params. Links to an older pairing are answered with 404 so a
// stale page can never show or download a different image.
func (s *Server) currentOutput(c echo.Context) (*session.Rendered, error) {
	gen, err := strconv.ParseUint(c.Param("generation"), 10, 64)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "unknown image")
	}
	preset, err := types.PresetByName(c.Param("name"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	ctrl, ok := s.lookup(c)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusNotFound, "nothing to preview")
	}

	r, err := ctrl.Output(c.Request().Context())
	switch {
	case err == nil:
	case errors.Is(err, types.ErrNoImage), errors.Is(err, types.ErrNoPreset):
		return nil, echo.NewHTTPError(http.StatusNotFound, "nothing to preview")
	case errors.Is(err, types.ErrSuperseded):
		return nil, echo.NewHTTPError(http.StatusConflict, "image changed, reload the page")
	default:
		return nil, fmt.Errorf("render output: %w", err)
	}

	if r.Generation != gen || r.Preset.Name != preset.Name {
		return nil, echo.NewHTTPError(http.StatusNotFound, "image is no longer current")
	}
	return r, nil
}
