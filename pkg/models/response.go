package models

import "time"

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Uptime    time.Duration     `json:"uptime"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// JobListResponse wraps a page of jobs
type JobListResponse struct {
	Jobs  []Job `json:"jobs"`
	Count int   `json:"count"`
}

// CompanyListResponse wraps all known companies
type CompanyListResponse struct {
	Companies []Company `json:"companies"`
	Count     int       `json:"count"`
}

// Stats summarises stored data and quota usage
type Stats struct {
	TotalCompanies int            `json:"total_companies"`
	TotalJobs      int            `json:"total_jobs"`
	ByStatus       map[string]int `json:"by_status"`
	ByRoleType     map[string]int `json:"by_role_type"`
	AverageScore   float64        `json:"average_score"`
	QuotaPeriod    string         `json:"quota_period,omitempty"`
	QuotaUsed      int            `json:"quota_used"`
	QuotaCeiling   int            `json:"quota_ceiling"`
	LastRunAt      *time.Time     `json:"last_run_at,omitempty"`
}
