package handlers

import (
	"net/http"

	"github.com/boazAvami/Epi-Com-sub000/internal/models"
	"github.com/boazAvami/Epi-Com-sub000/internal/sos"
	"github.com/labstack/echo/v4"
)

// SOSHandler handles SOS alert HTTP requests
type SOSHandler struct {
	service *sos.Service
}

// NewSOSHandler creates a new SOSHandler
func NewSOSHandler(service *sos.Service) *SOSHandler {
	return &SOSHandler{service: service}
}

// RegisterSOSRoutes registers SOS-related routes
func (h *SOSHandler) RegisterSOSRoutes(g *echo.Group) {
	g.POST("/sos", h.Send)
	g.POST("/sos/stop", h.Stop)
	g.POST("/sos/:id/expand", h.Expand)
	g.POST("/sos/:id/respond", h.Respond)
	g.GET("/sos/:id/responders", h.GetResponders)
}

// Send raises a new alert around the caller's location
func (h *SOSHandler) Send(c echo.Context) error {
	userID := getUserIDFromContext(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req models.SendSOSRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	created, notified, err := h.service.Send(c.Request().Context(), userID, req.Location)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"status":         "success",
		"message":        "SOS sent",
		"sos_id":         created.ID.Hex(),
		"notified_count": notified,
	})
}

// Expand widens the broadcast radius; only newly-in-range holders are alerted
func (h *SOSHandler) Expand(c echo.Context) error {
	userID := getUserIDFromContext(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req models.ExpandSOSRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	notified, err := h.service.Expand(c.Request().Context(), userID, c.Param("id"), req.Location, req.RadiusMeters)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":         "success",
		"message":        "Search radius expanded",
		"notified_count": notified,
	})
}

// Respond marks the caller as on their way to help
func (h *SOSHandler) Respond(c echo.Context) error {
	userID := getUserIDFromContext(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req models.RespondSOSRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := h.service.Respond(c.Request().Context(), userID, c.Param("id"), req.Location); err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":  "success",
		"message": "Response recorded",
	})
}

// Stop ends the caller's current active alert
func (h *SOSHandler) Stop(c echo.Context) error {
	userID := getUserIDFromContext(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	if err := h.service.Stop(c.Request().Context(), userID); err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":  "success",
		"message": "SOS stopped",
	})
}

// GetResponders lists who agreed to help; requester only
func (h *SOSHandler) GetResponders(c echo.Context) error {
	userID := getUserIDFromContext(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	responders, err := h.service.Responders(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"responders": responders,
	})
}
