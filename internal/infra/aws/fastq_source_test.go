package aws

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DOH-JDJ0303/waphl-data/internal/domain"
)

func newTestFastqSource(s3c *fakeS3, now time.Time) *FastqSource {
	src := NewFastqSource(s3c, "src", "tables/fastq.csv", 30*24*time.Hour, discardLogger())
	src.now = func() time.Time { return now }
	return src
}

func TestFastqSourceSelectsRecentPairedReads(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	recent := now.Add(-24 * time.Hour).Unix()
	old := now.Add(-60 * 24 * time.Hour).Unix()

	table := "id,workflow,run,file,timestamp,origin,current\n" +
		fmt.Sprintf("S1,phoenix,run1,S1_S1_L001_R1_001.fastq.gz,%d,x,s3://src/run1/S1_R1.fastq.gz\n", recent) +
		fmt.Sprintf("S1,phoenix,run1,S1_S1_L001_R2_001.fastq.gz,%d,x,s3://src/run1/S1_R2.fastq.gz\n", recent) +
		fmt.Sprintf("S2,phoenix,run0,S2_R1.fastq.gz,%d,x,s3://src/run0/S2_R1.fastq.gz\n", old) +
		fmt.Sprintf("S3,phoenix,run1,S3.fasta,%d,x,s3://src/run1/S3.fasta\n", recent) +
		"S4,phoenix,run1,S4_R1.fastq.gz,yesterday,x,s3://src/run1/S4_R1.fastq.gz\n"

	s3c := newFakeS3()
	s3c.put("src", "tables/fastq.csv", []byte(table))

	listing, err := newTestFastqSource(s3c, now).List(context.Background())
	require.NoError(t, err)

	require.Len(t, listing.Items, 2)
	assert.Equal(t, "S1_R1.fastq.gz", listing.Items[0].ID)
	assert.Equal(t, "s3://src/run1/S1_R1.fastq.gz", listing.Items[0].Attributes.Value("source_uri"))
	assert.Equal(t, "S1_R2.fastq.gz", listing.Items[1].ID)

	require.Len(t, listing.Skipped, 1)
	assert.Equal(t, domain.SkipMalformed, listing.Skipped[0].Reason)
	assert.Equal(t, "tables/fastq.csv:6", listing.Skipped[0].ItemID)
}

func TestFastqSourceWithoutHeaderUsesPositions(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	row := fmt.Sprintf("S9,wf,run,S9_R2.fastq.gz,%d,o,s3://src/S9_R2.fastq.gz\n", now.Unix()-10)

	s3c := newFakeS3()
	s3c.put("src", "tables/fastq.csv", []byte(row))

	listing, err := newTestFastqSource(s3c, now).List(context.Background())
	require.NoError(t, err)
	require.Len(t, listing.Items, 1)
	assert.Equal(t, "S9_R2.fastq.gz", listing.Items[0].ID)
}

func TestFastqSourceMissingTableFails(t *testing.T) {
	_, err := newTestFastqSource(newFakeS3(), time.Now()).List(context.Background())
	assert.ErrorIs(t, err, domain.ErrUpstreamListing)
}

func TestFastqSourceReadLabels(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	ts := now.Unix() - 10
	table := "id,workflow,run,file,timestamp,origin,current\n" +
		fmt.Sprintf("A,wf,run,AR2.fastq.gz,%d,o,s3://src/AR2.fastq.gz\n", ts) +
		fmt.Sprintf("B,wf,run,B_R1_R2.fastq.gz,%d,o,s3://src/B.fastq.gz\n", ts) +
		fmt.Sprintf("C,wf,run,CR1.fastq.gz,%d,o,s3://src/CR1.fastq.gz\n", ts)

	s3c := newFakeS3()
	s3c.put("src", "tables/fastq.csv", []byte(table))

	listing, err := newTestFastqSource(s3c, now).List(context.Background())
	require.NoError(t, err)
	require.Len(t, listing.Items, 2)
	assert.Equal(t, "A_R2.fastq.gz", listing.Items[0].ID)
	assert.Equal(t, "R2", listing.Items[0].Attributes.Value("read"))
	assert.Equal(t, "B_R1.fastq.gz", listing.Items[1].ID)
	assert.Empty(t, listing.Skipped)
}
