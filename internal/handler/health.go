package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health is a simple health-check endpoint used by load balancers and
// monitoring systems to verify that the service is running.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Ping answers the frontend's connectivity probe.
func Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
