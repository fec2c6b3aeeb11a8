package http

import (
	"github.com/DOH-JDJ0303/waphl-data/internal/usecase"
)

// RunRequest is the optional body of POST /pipelines/{name}/runs.
type RunRequest struct {
	Limit  *int `json:"limit,omitempty" validate:"omitempty,gte=0,lte=1000"`
	DryRun bool `json:"dry_run,omitempty"`
}

// ToOverrides converts the request to run overrides.
func (r *RunRequest) ToOverrides() usecase.RunOverrides {
	return usecase.RunOverrides{Limit: r.Limit, DryRun: r.DryRun}
}

// MarkKnownRequest is the body of PUT /pipelines/{name}/known.
type MarkKnownRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=1000,dive,required"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}
