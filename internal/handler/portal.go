package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/partner-portal/internal/logger"
	"github.com/iliyamo/partner-portal/internal/middleware"
	"github.com/iliyamo/partner-portal/internal/model"
	"github.com/iliyamo/partner-portal/internal/service"
)

// PortalHandler exposes the portal use cases under /v1.
type PortalHandler struct {
	Portal  *service.Portal
	Log     logger.Logger
	Timeout time.Duration // per-request budget for record store calls
}

// NewPortalHandler constructs a PortalHandler and panics if the portal is nil.
func NewPortalHandler(p *service.Portal, log logger.Logger, timeout time.Duration) *PortalHandler {
	if p == nil {
		panic("nil portal passed to NewPortalHandler")
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &PortalHandler{Portal: p, Log: log, Timeout: timeout}
}

func (h *PortalHandler) ctx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), h.Timeout)
}

func identity(c echo.Context) (model.Identity, bool) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		_ = c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return id, ok
}

// IsAdmin backs middleware.RequireAdmin for the /v1/admin group.
func (h *PortalHandler) IsAdmin(ctx context.Context, id model.Identity) (bool, error) {
	a, err := h.Portal.ResolveAgency(ctx, id)
	if err != nil {
		return false, err
	}
	return a.Info().IsAdmin, nil
}

// Me handles GET /v1/me.
func (h *PortalHandler) Me(c echo.Context) error {
	id, ok := identity(c)
	if !ok {
		return nil
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	profile, err := h.Portal.Me(ctx, id)
	if err != nil {
		return h.respondError(c, "could not load profile", err)
	}
	return c.JSON(http.StatusOK, profile)
}

// Tariffs handles GET /v1/tariffs.  An empty sheet usually means every
// product table failed, so it is marked no-store for the response cache.
func (h *PortalHandler) Tariffs(c echo.Context) error {
	id, ok := identity(c)
	if !ok {
		return nil
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	sheet, err := h.Portal.Tariffs(ctx, id)
	if err != nil {
		return h.respondError(c, "could not load tariffs", err)
	}
	if len(sheet.Products) == 0 {
		c.Response().Header().Set("Cache-Control", "no-store")
	}
	return c.JSON(http.StatusOK, sheet)
}

// Simulate handles POST /v1/simulations.
func (h *PortalHandler) Simulate(c echo.Context) error {
	id, ok := identity(c)
	if !ok {
		return nil
	}
	var req service.SimulationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	sim, err := h.Portal.Simulate(ctx, id, req)
	if err != nil {
		return h.respondError(c, "could not simulate", err)
	}
	return c.JSON(http.StatusOK, sim)
}

// CreateReservation handles POST /v1/reservations.
func (h *PortalHandler) CreateReservation(c echo.Context) error {
	id, ok := identity(c)
	if !ok {
		return nil
	}
	var req service.ReservationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	res, err := h.Portal.CreateReservation(ctx, id, req)
	if err != nil {
		return h.respondError(c, "could not create reservation", err)
	}
	return c.JSON(http.StatusCreated, res)
}

// Mural handles GET /v1/mural.
func (h *PortalHandler) Mural(c echo.Context) error {
	id, ok := identity(c)
	if !ok {
		return nil
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	view, err := h.Portal.Mural(ctx, id)
	if err != nil {
		return h.respondError(c, "could not load mural", err)
	}
	return c.JSON(http.StatusOK, view)
}

// ConfirmRead handles POST /v1/mural/:id/read.  The response reports which
// of the two writes landed; a 200 does not mean both did.
func (h *PortalHandler) ConfirmRead(c echo.Context) error {
	id, ok := identity(c)
	if !ok {
		return nil
	}
	noticeID := strings.TrimSpace(c.Param("id"))
	if noticeID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "notice id required"})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	res, err := h.Portal.ConfirmRead(ctx, id, noticeID)
	if err != nil {
		return h.respondError(c, "could not confirm read", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "result": res})
}

// ReadLog handles GET /v1/read-log?noticeId=.
func (h *PortalHandler) ReadLog(c echo.Context) error {
	id, ok := identity(c)
	if !ok {
		return nil
	}
	noticeID := strings.TrimSpace(c.QueryParam("noticeId"))
	if noticeID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "noticeId query parameter is required"})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	readers, err := h.Portal.Readers(ctx, id, noticeID)
	if err != nil {
		return h.respondError(c, "could not load read log", err)
	}
	if readers == nil {
		readers = []model.ReadReceipt{}
	}
	return c.JSON(http.StatusOK, echo.Map{"readers": readers})
}

// CreateAgency handles POST /v1/admin/agencies.
func (h *PortalHandler) CreateAgency(c echo.Context) error {
	id, ok := identity(c)
	if !ok {
		return nil
	}
	var req service.AgencyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	a, err := h.Portal.CreateAgency(ctx, id, req)
	if err != nil {
		return h.respondError(c, "could not create agency", err)
	}
	return c.JSON(http.StatusCreated, a)
}
