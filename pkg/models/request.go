package models

// UpdateJobRequest represents the payload for changing a job's status or notes
type UpdateJobRequest struct {
	Status JobStatus `json:"status" validate:"required,job_status"`
	Notes  *string   `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// ListJobsRequest holds query parameters for job listings
type ListJobsRequest struct {
	Status   string `query:"status" validate:"omitempty,job_status"`
	MinScore int    `query:"min_score" validate:"gte=0,lte=100"`
	RoleType string `query:"role_type" validate:"omitempty,oneof=pm vc other"`
	Limit    int    `query:"limit" validate:"gte=0,lte=500"`
}

// Filter converts the query into a repository filter
func (r ListJobsRequest) Filter() JobFilter {
	return JobFilter{
		Status:   JobStatus(r.Status),
		MinScore: r.MinScore,
		RoleType: RoleType(r.RoleType),
		Limit:    r.Limit,
	}
}
