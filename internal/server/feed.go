package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hotstory/radar/config"
	"github.com/hotstory/radar/models"
)

// FeedSource satisfies a feed request, deciding between cache, incremental
// collection and a full rebuild.
type FeedSource interface {
	GetOrRefresh(ctx context.Context, userID string, forceRefresh, useCache bool) (models.FeedResponse, error)
}

// PreferenceStore is the slice of the record store the feed handlers need.
type PreferenceStore interface {
	GetPreferences(ctx context.Context, userID string) (models.Preferences, error)
	UpsertPreferences(ctx context.Context, p models.Preferences) error
	RecordInteraction(ctx context.Context, in models.Interaction) error
}

type FeedHandler struct {
	Feed    FeedSource
	Store   PreferenceStore
	FeedCfg config.FeedConfig
}

func (h *FeedHandler) Register(g *echo.Group, secret []byte) {
	g.Use(authMiddleware(secret))
	g.GET("/feed", h.getFeed)
	g.GET("/preferences", h.getPreferences)
	g.PUT("/preferences", h.putPreferences)
	g.POST("/interactions", h.postInteraction)
}

func (h *FeedHandler) getFeed(c echo.Context) error {
	force := boolParam(c, "force_refresh", false)
	useCache := boolParam(c, "use_cache", true)
	feed, err := h.Feed.GetOrRefresh(c.Request().Context(), userID(c), force, useCache)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, feed)
}

func (h *FeedHandler) getPreferences(c echo.Context) error {
	prefs, err := h.Store.GetPreferences(c.Request().Context(), userID(c))
	if errors.Is(err, models.ErrNotFound) {
		prefs = models.Preferences{
			UserID:                 userID(c),
			UpdateFrequencyMinutes: h.FeedCfg.UpdateFrequencyMinutes,
			MaxArticlesPerFeed:     h.FeedCfg.MaxArticlesPerFeed,
			AutoRefreshEnabled:     true,
		}
	} else if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, prefs)
}

func (h *FeedHandler) putPreferences(c echo.Context) error {
	var prefs models.Preferences
	if err := c.Bind(&prefs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	prefs.UserID = userID(c)
	if prefs.MaxArticlesPerFeed < 0 || prefs.UpdateFrequencyMinutes < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "limits must not be negative")
	}
	if err := h.Store.UpsertPreferences(c.Request().Context(), prefs); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, prefs)
}

func (h *FeedHandler) postInteraction(c echo.Context) error {
	var req InteractionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ArticleID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "article_id required")
	}
	in := models.Interaction{
		UserID:       userID(c),
		ArticleID:    req.ArticleID,
		Type:         strings.ToLower(req.Type),
		ReadDuration: req.ReadDuration,
	}
	if err := h.Store.RecordInteraction(c.Request().Context(), in); err != nil {
		if strings.Contains(err.Error(), "unknown interaction type") {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusCreated)
}

func boolParam(c echo.Context, name string, def bool) bool {
	raw := c.QueryParam(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}
