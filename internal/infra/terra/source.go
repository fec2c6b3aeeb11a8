package terra

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/DOH-JDJ0303/waphl-data/internal/domain"
)

// DateLayout is the layout of Terra submission dates.
const DateLayout = time.RFC3339Nano

// SubmissionLister is the part of Client a SubmissionSource needs.
type SubmissionLister interface {
	EntityTypes(ctx context.Context, project, workspace string) (map[string]struct{}, error)
	Submissions(ctx context.Context, project, workspace string) ([]Submission, error)
}

var _ SubmissionLister = (*Client)(nil)

// SourceOptions filter the submissions of one workspace.
type SourceOptions struct {
	Project   string
	Workspace string
	// Window keeps only submissions newer than now-Window. Zero keeps all.
	Window time.Duration
	// ExcludeSets drops submissions on *_set entity tables.
	ExcludeSets bool
}

// SubmissionSource lists completed submissions with at least one succeeded
// workflow whose entity table still exists.
type SubmissionSource struct {
	client SubmissionLister
	opts   SourceOptions
	now    func() time.Time
	logger *slog.Logger
}

func NewSubmissionSource(client SubmissionLister, opts SourceOptions, logger *slog.Logger) *SubmissionSource {
	return &SubmissionSource{
		client: client,
		opts:   opts,
		now:    time.Now,
		logger: logger.With("component", "terra-source", "project", opts.Project, "workspace", opts.Workspace),
	}
}

func (s *SubmissionSource) List(ctx context.Context) (*domain.Listing, error) {
	entityTypes, err := s.client.EntityTypes(ctx, s.opts.Project, s.opts.Workspace)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamListing, err)
	}
	subs, err := s.client.Submissions(ctx, s.opts.Project, s.opts.Workspace)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamListing, err)
	}

	var cutoff time.Time
	if s.opts.Window > 0 {
		cutoff = s.now().Add(-s.opts.Window)
	}

	listing := &domain.Listing{}
	for _, sub := range subs {
		entityType := sub.SubmissionEntity.EntityType
		if _, ok := entityTypes[entityType]; !ok {
			continue
		}
		if sub.Status != "Done" || sub.WorkflowStatuses["Succeeded"] == 0 {
			continue
		}
		if s.opts.ExcludeSets && strings.Contains(entityType, "_set") {
			continue
		}
		if !cutoff.IsZero() {
			submitted, err := time.Parse(DateLayout, sub.SubmissionDate)
			if err != nil {
				listing.Skipped = append(listing.Skipped, domain.Skip{
					ItemID: sub.SubmissionID,
					Reason: domain.SkipMalformed,
					Detail: fmt.Sprintf("submission date %q: %v", sub.SubmissionDate, err),
				})
				continue
			}
			if !submitted.After(cutoff) {
				continue
			}
		}

		listing.Items = append(listing.Items, domain.WorkItem{
			ID: sub.SubmissionID,
			Attributes: domain.NewAttributes(
				"project", s.opts.Project,
				"workspace", s.opts.Workspace,
				"submission_id", sub.SubmissionID,
				"workflow", sub.MethodConfigurationName,
				"entity_type", entityType,
				"submission_date", sub.SubmissionDate,
			),
		})
	}
	s.logger.Debug("listed submissions", "total", len(subs), "eligible", len(listing.Items))
	return listing, nil
}
