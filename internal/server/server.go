package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hotstory/radar/config"
)

// Run starts the HTTP API server and the background radar scheduler.
func Run(cfg *config.Config, addr string) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	if err := Migrate("file://migrations", cfg.Storage.Postgres.DSN(), "up", 0); err != nil {
		baseLogger.Printf("migrations: %v", err)
	}

	secret := cfg.General.JWTSecret
	if secret == "" {
		return fmt.Errorf("jwt secret not configured (general.jwt_secret)")
	}

	ctx := context.Background()
	logger := log.New(log.Writer(), "[RADAR] ", log.LstdFlags)
	deps, err := NewComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}

	api := e.Group("/api")
	auth := &AuthHandler{Store: deps.Store, Secret: []byte(secret)}
	auth.Register(api.Group("/auth"))

	me := api.Group("/me")
	me.Use(authMiddleware(auth.Secret))
	me.GET("", func(c echo.Context) error {
		return c.JSON(http.StatusOK, MeResponse{UserID: userID(c)})
	})

	fh := &FeedHandler{Feed: deps.Updater, Store: deps.Store, FeedCfg: cfg.Feed}
	fh.Register(api.Group(""), auth.Secret)

	rh := &RadarHandler{Runner: deps.Pipeline, Store: deps.Store, Locks: deps.Cache, Logger: logger}
	rh.Register(api.Group("/radar"), auth.Secret)

	ah := &AdminHandler{Jobs: deps.Worker}
	ah.Register(api.Group("/admin"), auth.Secret)

	sched := &Scheduler{
		Runner:   deps.Pipeline,
		Store:    deps.Store,
		Locks:    deps.Cache,
		Interval: time.Hour,
		Logger:   logger,
		Stop:     make(chan struct{}),
	}
	sched.Start()

	if addr == "" {
		addr = cfg.Server.Address
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
