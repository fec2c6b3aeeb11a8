// Package manifest lists pipeline runs named in a local workflow,run_uri CSV.
package manifest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/DOH-JDJ0303/waphl-data/internal/domain"
)

// ExistenceChecker reports whether an object URI exists.
type ExistenceChecker interface {
	Exists(ctx context.Context, uri string) (bool, error)
}

// Source reads the manifest on every List. When a checker is set, every run
// URI must exist before any item is returned.
type Source struct {
	path    string
	checker ExistenceChecker
	logger  *slog.Logger
}

// NewSource creates a manifest source. checker may be nil.
func NewSource(path string, checker ExistenceChecker, logger *slog.Logger) *Source {
	return &Source{path: path, checker: checker, logger: logger.With("component", "manifest-source", "path", path)}
}

func (s *Source) List(ctx context.Context) (*domain.Listing, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open manifest: %v", domain.ErrUpstreamListing, err)
	}
	defer f.Close()

	listing, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrUpstreamListing, s.path, err)
	}

	if s.checker != nil {
		for _, item := range listing.Items {
			ok, err := s.checker.Exists(ctx, item.ID)
			if err != nil {
				return nil, fmt.Errorf("%w: failed to check %s: %v", domain.ErrUpstreamListing, item.ID, err)
			}
			if !ok {
				return nil, fmt.Errorf("%w: %s does not exist", domain.ErrUpstreamListing, item.ID)
			}
		}
	}
	s.logger.Debug("read manifest", "runs", len(listing.Items))
	return listing, nil
}

// Parse reads workflow,run_uri rows. Rows with fewer than two fields or an
// empty value are skipped as malformed; blank lines are ignored.
func Parse(r io.Reader) (*domain.Listing, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	listing := &domain.Listing{}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(row) < 2 || strings.TrimSpace(row[0]) == "" || strings.TrimSpace(row[1]) == "" {
			line, _ := cr.FieldPos(0)
			listing.Skipped = append(listing.Skipped, domain.Skip{
				ItemID: fmt.Sprintf("line %d", line),
				Reason: domain.SkipMalformed,
				Detail: "expected workflow,run_uri",
			})
			continue
		}
		workflow, run := strings.TrimSpace(row[0]), strings.TrimSpace(row[1])
		listing.Items = append(listing.Items, domain.WorkItem{
			ID: run,
			Attributes: domain.NewAttributes(
				"workflow", workflow,
				"run_uri", run,
				"run_name", RunName(run),
			),
		})
	}
	return listing, nil
}

// RunName is the last path segment of a run directory URI:
// s3://bucket/runs/240101_M01/ gives 240101_M01.
func RunName(uri string) string {
	trimmed := strings.TrimRight(uri, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}
