package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// JobRunner triggers one maintenance routine outside its schedule.
type JobRunner interface {
	RunJobNow(ctx context.Context, job string) error
}

type AdminHandler struct {
	Jobs JobRunner
}

func (h *AdminHandler) Register(g *echo.Group, secret []byte) {
	g.Use(authMiddleware(secret))
	g.POST("/jobs/:job", h.runJob)
}

func (h *AdminHandler) runJob(c echo.Context) error {
	job := c.Param("job")
	if err := h.Jobs.RunJobNow(c.Request().Context(), job); err != nil {
		if strings.Contains(err.Error(), "unknown job") {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, JobResponse{Job: strings.ToLower(job), Status: "completed"})
}
