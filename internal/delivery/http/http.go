package http

import (
	"net/http"

	"cryptofolio/internal/engine"
	"cryptofolio/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Handler exposes the engine's operational state. The dashboard's CRUD
// API lives elsewhere; this surface is for probes and operators only.
type Handler struct {
	echo      *echo.Echo
	log       *logger.Logger
	scheduler *engine.Scheduler
}

func NewHandler(e *echo.Echo, log *logger.Logger, scheduler *engine.Scheduler) *Handler {
	return &Handler{
		echo:      e,
		log:       log,
		scheduler: scheduler,
	}
}

func (h *Handler) SetupRoutes() {
	h.echo.GET("/healthz", h.health)
	h.echo.GET("/api/engine/tasks", h.tasks)
}

func (h *Handler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) tasks(c echo.Context) error {
	return c.JSON(http.StatusOK, h.scheduler.Status())
}
