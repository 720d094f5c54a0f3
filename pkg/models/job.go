package models

import "time"

// JobStatus is the user-managed lifecycle state of a stored job
type JobStatus string

const (
	JobStatusNew        JobStatus = "new"
	JobStatusApplied    JobStatus = "applied"
	JobStatusInterested JobStatus = "interested"
	JobStatusRejected   JobStatus = "rejected"
)

// RoleType classifies a job by the kind of role it offers
type RoleType string

const (
	RoleTypePM    RoleType = "pm"
	RoleTypeVC    RoleType = "vc"
	RoleTypeOther RoleType = "other"
)

// Recommendation is the tier derived from a relevance score
type Recommendation string

const (
	RecommendationApply    Recommendation = "apply"
	RecommendationConsider Recommendation = "consider"
	RecommendationNone     Recommendation = ""
)

// RawListing is a candidate opening extracted from a career page.
// It is never stored directly.
type RawListing struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url" validate:"required,url"`
	Location    string `json:"location,omitempty"`
	CompanyRef  string `json:"company_ref,omitempty"`
}

// Analysis holds the qualitative part of a score kept with a stored job
type Analysis struct {
	Pros     []string `json:"pros,omitempty"`
	Cons     []string `json:"cons,omitempty"`
	Strategy string   `json:"strategy,omitempty"`
}

// Job is a persisted opening that passed the relevance threshold
type Job struct {
	ID             int64          `json:"id"`
	CompanyID      int64          `json:"company_id"`
	CompanyName    string         `json:"company_name,omitempty"`
	Title          string         `json:"title" validate:"required"`
	Description    string         `json:"description,omitempty"`
	URL            string         `json:"url" validate:"required,url"`
	Location       string         `json:"location,omitempty"`
	Score          int            `json:"relevance_score" validate:"gte=0,lte=100"`
	RoleType       RoleType       `json:"role_type"`
	Recommendation Recommendation `json:"recommendation,omitempty"`
	Reasoning      string         `json:"reasoning,omitempty"`
	Analysis       *Analysis      `json:"ai_analysis,omitempty"`
	Status         JobStatus      `json:"status"`
	DiscoveredAt   time.Time      `json:"discovered_at"`
	LastSeenAt     time.Time      `json:"last_seen_at"`
	AppliedAt      *time.Time     `json:"applied_at,omitempty"`
	Notes          string         `json:"notes,omitempty"`
}

// NewJob builds a Job from a scored listing
func NewJob(listing RawListing, company *Company, result ScoreResult) *Job {
	job := &Job{
		Title:          listing.Title,
		Description:    listing.Description,
		URL:            listing.URL,
		Location:       listing.Location,
		Score:          result.Value,
		RoleType:       result.RoleType,
		Recommendation: result.Recommendation,
		Reasoning:      result.Reasoning,
		Status:         JobStatusNew,
	}
	if company != nil {
		job.CompanyID = company.ID
		job.CompanyName = company.Name
	}
	if len(result.Pros) > 0 || len(result.Cons) > 0 || result.Strategy != "" {
		job.Analysis = &Analysis{Pros: result.Pros, Cons: result.Cons, Strategy: result.Strategy}
	}
	return job
}

// JobFilter narrows job listings
type JobFilter struct {
	Status   JobStatus
	MinScore int
	RoleType RoleType
	Limit    int
}

// Outcome is the result of a persistence call. OutcomeSpooled accompanies a
// persistence failure whose payload reached the recovery spool.
type Outcome string

const (
	OutcomeInserted Outcome = "inserted"
	OutcomeUpdated  Outcome = "updated"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeSpooled  Outcome = "spooled"
)
