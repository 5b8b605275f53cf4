package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/southdmw/zeus-ops-workorder/internal/domain"
)

// ListBookings lists the stored patrol orders.
// GET /api/bookings
func (h *Handler) ListBookings(c echo.Context) error {
	bookings, err := h.service.ListBookings(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, domain.Fail(err.Error()))
	}
	return c.JSON(http.StatusOK, bookings)
}

// GetBooking returns one stored patrol order.
// GET /api/bookings/:id
func (h *Handler) GetBooking(c echo.Context) error {
	booking, err := h.service.GetBooking(c.Request().Context(), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, domain.Fail(err.Error()))
	}
	if booking == nil {
		return c.JSON(http.StatusNotFound, domain.Fail("patrol order not found"))
	}
	return c.JSON(http.StatusOK, booking)
}
