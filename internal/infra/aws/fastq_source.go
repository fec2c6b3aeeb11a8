package aws

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/DOH-JDJ0303/waphl-data/internal/domain"
)

// Default positions of the results metadata table:
// id,workflow,run,file,timestamp,origin,current.
const (
	fastqColID        = 0
	fastqColFile      = 3
	fastqColTimestamp = 4
	fastqColCurrent   = 6
)

// FastqSource lists paired-end read files from the results metadata table
// that were produced within the window.
type FastqSource struct {
	client S3API
	bucket string
	key    string
	window time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewFastqSource creates a source reading s3://bucket/key.
func NewFastqSource(client S3API, bucket, key string, window time.Duration, logger *slog.Logger) *FastqSource {
	return &FastqSource{
		client: client,
		bucket: bucket,
		key:    key,
		window: window,
		now:    time.Now,
		logger: logger.With("component", "fastq-source"),
	}
}

type fastqColumns struct{ id, file, timestamp, current int }

// columnsFor uses the header row when it names the columns, otherwise the
// fixed positions.
func columnsFor(header []string) (fastqColumns, bool) {
	cols := fastqColumns{id: -1, file: -1, timestamp: -1, current: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "id":
			cols.id = i
		case "file":
			cols.file = i
		case "timestamp":
			cols.timestamp = i
		case "current":
			cols.current = i
		}
	}
	if cols.id < 0 || cols.file < 0 || cols.timestamp < 0 || cols.current < 0 {
		return fastqColumns{fastqColID, fastqColFile, fastqColTimestamp, fastqColCurrent}, false
	}
	return cols, true
}

func (s *FastqSource) List(ctx context.Context) (*domain.Listing, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(s.key)})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read s3://%s/%s: %v", domain.ErrUpstreamListing, s.bucket, s.key, err)
	}
	defer out.Body.Close()

	r := csv.NewReader(out.Body)
	r.FieldsPerRecord = -1

	cutoff := s.now().Add(-s.window).Unix()
	listing := &domain.Listing{}

	var cols fastqColumns
	first := true
	for line := 1; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse s3://%s/%s: %v", domain.ErrUpstreamListing, s.bucket, s.key, err)
		}
		if first {
			first = false
			var isHeader bool
			if cols, isHeader = columnsFor(row); isHeader {
				continue
			}
		}

		item, keep, err := s.parseRow(row, cols, cutoff)
		if err != nil {
			s.logger.Warn("skipping row", "line", line, "error", err)
			listing.Skipped = append(listing.Skipped, domain.Skip{
				ItemID: fmt.Sprintf("%s:%d", s.key, line),
				Reason: domain.SkipMalformed,
				Detail: err.Error(),
			})
			continue
		}
		if keep {
			listing.Items = append(listing.Items, item)
		}
	}
	return listing, nil
}

// parseRow returns keep=false for rows that are not R1/R2 reads or fall
// outside the window.
func (s *FastqSource) parseRow(row []string, cols fastqColumns, cutoff int64) (domain.WorkItem, bool, error) {
	need := max(cols.id, cols.file, cols.timestamp, cols.current)
	if len(row) <= need {
		return domain.WorkItem{}, false, fmt.Errorf("%w: expected at least %d columns, got %d", domain.ErrMalformedItem, need+1, len(row))
	}
	file := row[cols.file]
	// A read file contains "_R1" or "R2"; it is R1 if "R1" appears anywhere.
	if !strings.Contains(file, "_R1") && !strings.Contains(file, "R2") {
		return domain.WorkItem{}, false, nil
	}
	read := "R2"
	if strings.Contains(file, "R1") {
		read = "R1"
	}

	ts, err := strconv.ParseInt(strings.TrimSpace(row[cols.timestamp]), 10, 64)
	if err != nil {
		return domain.WorkItem{}, false, fmt.Errorf("%w: timestamp %q is not unix seconds", domain.ErrMalformedItem, row[cols.timestamp])
	}
	if ts <= cutoff {
		return domain.WorkItem{}, false, nil
	}

	sample := strings.TrimSpace(row[cols.id])
	if sample == "" {
		return domain.WorkItem{}, false, fmt.Errorf("%w: empty sample id", domain.ErrMalformedItem)
	}
	source := strings.TrimSpace(row[cols.current])
	if _, _, err := ParseS3URI(source); err != nil {
		return domain.WorkItem{}, false, fmt.Errorf("%w: %v", domain.ErrMalformedItem, err)
	}

	return domain.WorkItem{
		ID: fmt.Sprintf("%s_%s.fastq.gz", sample, read),
		Attributes: domain.NewAttributes(
			"sample", sample,
			"read", read,
			"file", file,
			"timestamp", strconv.FormatInt(ts, 10),
			"source_uri", source,
		),
	}, true, nil
}
