package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"cronwatch/internal/connection"
	"cronwatch/internal/logger"
	"cronwatch/internal/model"
	"cronwatch/internal/platform"
	"cronwatch/internal/reconcile"
	"cronwatch/internal/repository"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// Server is the thin HTTP surface over the core. Authentication happens
// upstream; the authenticated user id arrives in the X-User-ID header.
type Server struct {
	echo       *echo.Echo
	conns      *connection.Store
	reconciler *reconcile.Reconciler
	jobs       *repository.JobRepository
	runs       *repository.RunRepository
	alerts     *repository.AlertRepository
	registry   *platform.Registry
	port       int
	stopCh     chan struct{}
}

func New(
	conns *connection.Store,
	reconciler *reconcile.Reconciler,
	jobs *repository.JobRepository,
	runs *repository.RunRepository,
	alerts *repository.AlertRepository,
	registry *platform.Registry,
	port int,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:       e,
		conns:      conns,
		reconciler: reconciler,
		jobs:       jobs,
		runs:       runs,
		alerts:     alerts,
		registry:   registry,
		port:       port,
		stopCh:     make(chan struct{}, 1),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/status", s.handleStatus)
	s.echo.POST("/stop", s.handleStop)

	c := s.echo.Group("/connections", s.requireUser)
	c.GET("", s.handleListConnections)
	c.POST("", s.handleCreateConnection)
	c.GET("/:id", s.handleGetConnection)
	c.PUT("/:id", s.handleUpdateConnection)
	c.DELETE("/:id", s.handleDeleteConnection)
	c.POST("/:id/test", s.handleTestConnection)
	c.POST("/:id/discover", s.handleDiscover)

	j := s.echo.Group("/jobs", s.requireUser)
	j.GET("", s.handleListJobs)
	j.GET("/:id", s.handleGetJob)
	j.GET("/:id/runs", s.handleListRuns)
	j.GET("/:id/stats", s.handleJobStats)

	a := s.echo.Group("/alerts", s.requireUser)
	a.GET("", s.handleListAlerts)
	a.GET("/stats", s.handleAlertStats)
	a.GET("/:id", s.handleGetAlert)
	a.POST("/:id/resolve", s.handleResolveAlert)
}

func (s *Server) Start() {
	go func() {
		addr := ":" + strconv.Itoa(s.port)
		logger.Log.Info("api server started",
			zap.String("addr", addr))

		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("api server error", zap.Error(err))
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) StopCh() <-chan struct{} {
	return s.stopCh
}

func (s *Server) requireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().Header.Get("X-User-ID") == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing user identity"})
		}
		return next(c)
	}
}

func userID(c echo.Context) string {
	return c.Request().Header.Get("X-User-ID")
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(c echo.Context) error {
	jobCount, err := s.jobs.Count()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"jobs": jobCount,
	})
}

func (s *Server) handleStop(c echo.Context) error {
	s.stopCh <- struct{}{}
	return c.JSON(http.StatusOK, map[string]string{"status": "stopping"})
}

func (s *Server) handleListConnections(c echo.Context) error {
	records, err := s.conns.List(userID(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, records)
}

type createConnectionRequest struct {
	Platform model.Platform         `json:"platform"`
	Label    string                 `json:"label"`
	Config   model.ConnectionConfig `json:"config"`
}

func (s *Server) handleCreateConnection(c echo.Context) error {
	var req createConnectionRequest
	if err := c.Bind(&req); err != nil || req.Platform == "" || req.Label == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "platform and label required"})
	}

	if _, ok := s.registry.Lookup(req.Platform); !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unsupported platform"})
	}

	record, err := s.conns.Create(userID(c), req.Platform, req.Label, req.Config)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, record)
}

func (s *Server) handleGetConnection(c echo.Context) error {
	record, err := s.conns.Get(c.Param("id"), userID(c))
	if err != nil {
		return notFoundOr500(c, err)
	}
	return c.JSON(http.StatusOK, record)
}

type updateConnectionRequest struct {
	Label  *string                 `json:"label"`
	Config *model.ConnectionConfig `json:"config"`
}

func (s *Server) handleUpdateConnection(c echo.Context) error {
	var req updateConnectionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid body"})
	}

	record, err := s.conns.Update(c.Param("id"), userID(c), connection.Updates{
		Label:  req.Label,
		Config: req.Config,
	})
	if err != nil {
		return notFoundOr500(c, err)
	}
	return c.JSON(http.StatusOK, record)
}

func (s *Server) handleDeleteConnection(c echo.Context) error {
	deleted, err := s.conns.Delete(c.Param("id"), userID(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if !deleted {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "connection not found"})
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleTestConnection(c echo.Context) error {
	record, err := s.conns.Get(c.Param("id"), userID(c))
	if err != nil {
		return notFoundOr500(c, err)
	}

	fetcher, ok := s.registry.Lookup(record.Platform)
	if !ok {
		return c.JSON(http.StatusOK, map[string]any{
			"success": false,
			"message": "platform is not supported",
		})
	}

	ok, err = fetcher.ValidateAccess(c.Request().Context(), record.Config)
	if err != nil {
		return c.JSON(http.StatusOK, map[string]any{
			"success": false,
			"message": "connection test failed: " + err.Error(),
		})
	}

	message := "connection successful"
	if !ok {
		message = "failed to reach platform with stored credentials"
	}
	return c.JSON(http.StatusOK, map[string]any{"success": ok, "message": message})
}

func (s *Server) handleDiscover(c echo.Context) error {
	result, err := s.reconciler.Discover(c.Request().Context(), c.Param("id"), userID(c))
	if err != nil {
		return notFoundOr500(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleListJobs(c echo.Context) error {
	limit, offset := pagination(c, 100)
	jobs, err := s.jobs.ListForUser(userID(c), model.Platform(c.QueryParam("platform")), limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, jobs)
}

func (s *Server) handleGetJob(c echo.Context) error {
	job, err := s.jobs.GetForUser(c.Param("id"), userID(c))
	if err != nil {
		return notFoundOr500(c, err)
	}
	return c.JSON(http.StatusOK, job)
}

func (s *Server) handleListRuns(c echo.Context) error {
	job, err := s.jobs.GetForUser(c.Param("id"), userID(c))
	if err != nil {
		return notFoundOr500(c, err)
	}

	limit, offset := pagination(c, 50)
	runs, err := s.runs.ListByJob(job.ID, limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, runs)
}

func (s *Server) handleJobStats(c echo.Context) error {
	job, err := s.jobs.GetForUser(c.Param("id"), userID(c))
	if err != nil {
		return notFoundOr500(c, err)
	}

	stats, err := s.runs.Stats(job.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	alertCount, err := s.alerts.CountByJob(job.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"runs":       stats,
		"alertCount": alertCount,
	})
}

func (s *Server) handleListAlerts(c echo.Context) error {
	limit, offset := pagination(c, 50)
	alerts, err := s.alerts.ListForUser(userID(c), model.AlertType(c.QueryParam("type")), limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, alerts)
}

func (s *Server) handleAlertStats(c echo.Context) error {
	stats, err := s.alerts.StatsForUser(userID(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleGetAlert(c echo.Context) error {
	alert, err := s.alerts.GetForUser(c.Param("id"), userID(c))
	if err != nil {
		return notFoundOr500(c, err)
	}
	return c.JSON(http.StatusOK, alert)
}

func (s *Server) handleResolveAlert(c echo.Context) error {
	alert, err := s.alerts.Resolve(c.Param("id"), userID(c))
	if err != nil {
		return notFoundOr500(c, err)
	}
	return c.JSON(http.StatusOK, alert)
}

func notFoundOr500(c echo.Context, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
	}
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func pagination(c echo.Context, defaultLimit int) (int, int) {
	limit := defaultLimit
	if raw := c.QueryParam("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	offset := 0
	if raw := c.QueryParam("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}
