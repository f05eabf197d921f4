package handlers

import (
	"net/http"

	"github.com/boazAvami/Epi-Com-sub000/internal/models"
	"github.com/boazAvami/Epi-Com-sub000/internal/repositories"
	"github.com/labstack/echo/v4"
)

// DeviceHandler handles device-location index HTTP requests
type DeviceHandler struct {
	deviceRepository repositories.DeviceRepository
}

// NewDeviceHandler creates a new DeviceHandler
func NewDeviceHandler(deviceRepo repositories.DeviceRepository) *DeviceHandler {
	return &DeviceHandler{deviceRepository: deviceRepo}
}

// RegisterDeviceRoutes registers device-related routes
func (h *DeviceHandler) RegisterDeviceRoutes(g *echo.Group) {
	g.PUT("/devices", h.UpsertDevice)
	g.GET("/devices", h.GetDevices)
	g.DELETE("/devices/:deviceId", h.DeleteDevice)
}

// UpsertDevice registers a device or refreshes its last known location
func (h *DeviceHandler) UpsertDevice(c echo.Context) error {
	userID := getUserIDFromContext(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req models.UpsertDeviceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	device := &models.Device{
		OwnerID:  userID,
		DeviceID: req.DeviceID,
		Platform: req.Platform,
		Location: models.NewGeoJSONPoint(req.Location),
	}
	if err := h.deviceRepository.UpsertDevice(c.Request().Context(), device); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// GetDevices lists the caller's registered devices
func (h *DeviceHandler) GetDevices(c echo.Context) error {
	userID := getUserIDFromContext(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	devices, err := h.deviceRepository.GetDevicesByOwner(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, devices)
}

// DeleteDevice removes one of the caller's devices from the location index
func (h *DeviceHandler) DeleteDevice(c echo.Context) error {
	userID := getUserIDFromContext(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	if err := h.deviceRepository.DeleteDevice(c.Request().Context(), userID, c.Param("deviceId")); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}
