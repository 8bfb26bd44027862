package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hotstory/radar/models"
)

const radarLockName = "radar:process"

// RadarRunner executes one full radar pipeline pass.
type RadarRunner interface {
	Run(ctx context.Context) (models.RadarResponse, error)
}

// RadarStore persists and serves radar runs.
type RadarStore interface {
	SaveRadarRun(ctx context.Context, resp models.RadarResponse) (string, error)
	GetLatestRadarRun(ctx context.Context) (models.RadarResponse, error)
}

// Locker guards against concurrent radar runs across replicas.
type Locker interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name string) error
}

type RadarHandler struct {
	Runner RadarRunner
	Store  RadarStore
	Locks  Locker
	Logger *log.Logger
}

func (h *RadarHandler) Register(g *echo.Group, secret []byte) {
	g.Use(authMiddleware(secret))
	g.GET("/latest", h.latest)
	g.POST("/process", h.process)
}

func (h *RadarHandler) latest(c echo.Context) error {
	resp, err := h.Store.GetLatestRadarRun(c.Request().Context())
	if errors.Is(err, models.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "no radar run yet")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *RadarHandler) process(c echo.Context) error {
	ctx := c.Request().Context()
	ok, err := h.Locks.AcquireLock(ctx, radarLockName, 10*time.Minute)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusConflict, "radar run already in progress")
	}
	defer func() {
		if err := h.Locks.ReleaseLock(context.Background(), radarLockName); err != nil {
			h.Logger.Printf("releasing radar lock: %v", err)
		}
	}()

	resp, err := h.Runner.Run(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if _, err := h.Store.SaveRadarRun(ctx, resp); err != nil {
		// The run itself succeeded; persisting is best effort here.
		h.Logger.Printf("saving radar run: %v", err)
	}
	return c.JSON(http.StatusOK, resp)
}
