package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	apimw "github.com/storepos/internal/api/middleware"
	lic "github.com/storepos/internal/license"
	"github.com/storepos/internal/licensing"
	"github.com/storepos/pkg/models"
)

// attachLicenseRoutes registers license endpoints under /api/v1
func (s *Server) attachLicenseRoutes(v1 *echo.Group) {
	group := v1.Group("/license")
	group.GET("/state", s.handleLicenseState)
	group.POST("/reconcile", s.handleLicenseReconcile)
	group.POST("/activate", s.handleLicenseActivate, apimw.Throttle(s.limiter, rejectThrottledActivation))
	group.GET("/first-run", s.handleFirstRun)
	group.POST("/first-run/seen", s.handleFirstRunSeen)
	group.GET("/history", s.handleLicenseHistory)
}

func (s *Server) handleLicenseState(c echo.Context) error {
	st, err := s.license.State(c.Request().Context())
	if err != nil {
		return classifyLicenseError(c, err)
	}
	return c.JSON(http.StatusOK, st.ToWire())
}

func (s *Server) handleLicenseReconcile(c echo.Context) error {
	if err := s.reconciler.RequestReconcile(c.Request().Context()); err != nil {
		return classifyLicenseError(c, err)
	}
	return c.JSON(http.StatusAccepted, models.Ack{OK: true})
}

func (s *Server) handleLicenseActivate(c echo.Context) error {
	var body models.ActivationRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid_request"})
	}
	out, err := s.license.Activate(c.Request().Context(), lic.NormalizeCode(body.Code))
	if err != nil {
		return classifyLicenseError(c, err)
	}
	return c.JSON(http.StatusOK, toActivationResponse(out))
}

func (s *Server) handleFirstRun(c echo.Context) error {
	first, err := s.license.FirstRun(c.Request().Context())
	if err != nil {
		return classifyLicenseError(c, err)
	}
	return c.JSON(http.StatusOK, models.FirstRunResponse{FirstRun: first})
}

func (s *Server) handleFirstRunSeen(c echo.Context) error {
	if err := s.license.MarkFirstRunSeen(c.Request().Context()); err != nil {
		return classifyLicenseError(c, err)
	}
	return c.JSON(http.StatusOK, models.Ack{OK: true})
}

func (s *Server) handleLicenseHistory(c echo.Context) error {
	hist, err := s.license.History(c.Request().Context())
	if err != nil {
		return classifyLicenseError(c, err)
	}
	out := make([]ActivationHistoryResponse, 0, len(hist))
	for _, h := range hist {
		out = append(out, toHistoryResponse(h))
	}
	return c.JSON(http.StatusOK, out)
}

func rejectThrottledActivation(c echo.Context) error {
	return c.JSON(http.StatusTooManyRequests, models.ActivationResponse{Success: false, Message: licensing.MsgThrottled})
}

func classifyLicenseError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, lic.ErrEmptyCode):
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "license_code_required"})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "license_unavailable"})
	}
	log.Error().Err(err).Str("path", c.Path()).Msg("license request failed")
	return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "license_internal"})
}
