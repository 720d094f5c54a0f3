package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"jobscout/internal/api/handlers"
	"jobscout/internal/api/middleware"
	"jobscout/internal/background"
	"jobscout/internal/config"
	"jobscout/internal/llm"
	"jobscout/internal/quota"
	"jobscout/internal/store"
)

// Deps are the services exposed over HTTP. LLM and Quota are optional.
type Deps struct {
	Repo  store.Repository
	Runs  background.RunManager
	LLM   *llm.Manager
	Quota *quota.Tracker
}

// SetupRoutes configures all API routes
func SetupRoutes(e *echo.Echo, cfg *config.Config, deps Deps) {
	// Global middleware
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(middleware.CORSConfig(cfg.Server.AllowOrigins))
	e.Use(middleware.RequestValidation())
	e.Use(middleware.TimeoutConfig(cfg.Server.WriteTimeout))

	var llmHealth handlers.HealthChecker
	if deps.LLM != nil {
		llmHealth = deps.LLM
	}
	var quotaSource handlers.QuotaSource
	if deps.Quota != nil {
		quotaSource = deps.Quota
	}

	// Health check routes
	health := e.Group("/health")
	{
		health.GET("", handlers.HealthHandler)
		health.GET("/ready", handlers.ReadinessHandler(deps.Repo, deps.Runs, llmHealth))
		health.GET("/live", handlers.LivenessHandler)
	}

	// API v1 routes
	v1 := e.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			jobs.GET("", handlers.ListJobsHandler(deps.Repo))
			jobs.GET("/:id", handlers.GetJobHandler(deps.Repo))
			jobs.PATCH("/:id", handlers.UpdateJobHandler(deps.Repo, nil))
		}

		v1.GET("/companies", handlers.ListCompaniesHandler(deps.Repo))
		v1.GET("/stats", handlers.StatsHandler(deps.Repo, quotaSource))

		runs := v1.Group("/runs")
		{
			runs.POST("", handlers.TriggerRunHandler(deps.Runs))
			runs.GET("", handlers.ListRunsHandler(deps.Runs))
			runs.GET("/history", handlers.HistoryHandler(deps.Repo))
			runs.GET("/:id", handlers.GetRunHandler(deps.Runs))
		}
	}

	// Root route
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"service": "jobscout",
			"version": handlers.Version,
			"status":  "running",
		})
	})
}
