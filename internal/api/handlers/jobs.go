package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"jobscout/internal/logging"
	"jobscout/pkg/models"
	"jobscout/pkg/utils"
)

// JobStore is the job surface the API reads and updates
type JobStore interface {
	GetJob(ctx context.Context, id int64) (*models.Job, error)
	ListJobs(ctx context.Context, filter models.JobFilter) ([]models.Job, error)
	UpdateJobStatus(ctx context.Context, id int64, status models.JobStatus, notes *string, at time.Time) (*models.Job, error)
}

// CompanyLister lists stored companies
type CompanyLister interface {
	ListCompanies(ctx context.Context) ([]models.Company, error)
}

// ListJobsHandler handles GET /api/v1/jobs
func ListJobsHandler(repo JobStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.ListJobsRequest
		if err := c.Bind(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid_request", "Invalid query parameters")
		}
		if err := validate.Struct(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "validation_failed", err.Error())
		}

		jobs, err := repo.ListJobs(c.Request().Context(), req.Filter())
		if err != nil {
			return respondError(c, err)
		}
		if jobs == nil {
			jobs = []models.Job{}
		}
		return c.JSON(http.StatusOK, models.JobListResponse{Jobs: jobs, Count: len(jobs)})
	}
}

// GetJobHandler handles GET /api/v1/jobs/:id
func GetJobHandler(repo JobStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c)
		if err != nil {
			return respondError(c, err)
		}

		job, err := repo.GetJob(c.Request().Context(), id)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, job)
	}
}

// UpdateJobHandler handles PATCH /api/v1/jobs/:id. Moving a job to applied
// records the application time.
func UpdateJobHandler(repo JobStore, clock utils.Clock) echo.HandlerFunc {
	if clock == nil {
		clock = utils.RealClock{}
	}
	return func(c echo.Context) error {
		id, err := pathID(c)
		if err != nil {
			return respondError(c, err)
		}

		var req models.UpdateJobRequest
		if err := c.Bind(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid_request", "Invalid request format")
		}
		if err := validate.Struct(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "validation_failed", err.Error())
		}

		job, err := repo.UpdateJobStatus(c.Request().Context(), id, req.Status, req.Notes, clock.Now())
		if err != nil {
			return respondError(c, err)
		}

		logging.GetGlobalLogger().Info("Job status updated", map[string]interface{}{
			"request_id": requestID(c),
			"job_id":     id,
			"status":     string(job.Status),
		})
		return c.JSON(http.StatusOK, job)
	}
}

// ListCompaniesHandler handles GET /api/v1/companies
func ListCompaniesHandler(repo CompanyLister) echo.HandlerFunc {
	return func(c echo.Context) error {
		companies, err := repo.ListCompanies(c.Request().Context())
		if err != nil {
			return respondError(c, err)
		}
		if companies == nil {
			companies = []models.Company{}
		}
		return c.JSON(http.StatusOK, models.CompanyListResponse{Companies: companies, Count: len(companies)})
	}
}
