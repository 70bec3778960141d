package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/partner-portal/internal/repository"
	"github.com/iliyamo/partner-portal/internal/service"
)

// statusFor maps service and repository errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrNoAgency), errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrProductNotFound):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, repository.ErrAgencyNotFound), errors.Is(err, repository.ErrNoticeNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrBulletinTableNotFound):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// respondError writes {"error": ...}.  Client errors carry the error text;
// upstream and internal failures get msg with the cause appended so the
// operator can tell a missing table from a bad token.
func (h *PortalHandler) respondError(c echo.Context, msg string, err error) error {
	status := statusFor(err)
	body := err.Error()
	if status >= http.StatusInternalServerError {
		body = msg + ": " + err.Error()
		h.Log.WithError(err).Error(msg, map[string]interface{}{
			"route":  c.Path(),
			"status": status,
		})
	}
	return c.JSON(status, echo.Map{"error": body})
}
