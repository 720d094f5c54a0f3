package validation

import (
	"regexp"

	"github.com/go-playground/validator/v10"

	"jobscout/pkg/models"
)

// RunIDPattern matches ids produced by utils.GenerateRunID
var RunIDPattern = regexp.MustCompile(`^run_[a-f0-9]{16}$`)

// ValidateJobStatus accepts the four user-visible job states
func ValidateJobStatus(fl validator.FieldLevel) bool {
	switch models.JobStatus(fl.Field().String()) {
	case models.JobStatusNew, models.JobStatusApplied, models.JobStatusInterested, models.JobStatusRejected:
		return true
	}
	return false
}

// ValidateRunID validates that a run id has the expected format
func ValidateRunID(fl validator.FieldLevel) bool {
	return RunIDPattern.MatchString(fl.Field().String())
}

// RegisterJobValidators registers the custom validators used by request models
func RegisterJobValidators(v *validator.Validate) {
	v.RegisterValidation("job_status", ValidateJobStatus)
	v.RegisterValidation("run_id", ValidateRunID)
}

// New returns a validator with the custom validators registered
func New() *validator.Validate {
	v := validator.New()
	RegisterJobValidators(v)
	return v
}
