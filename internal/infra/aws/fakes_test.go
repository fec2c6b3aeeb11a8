package aws

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	athenatypes "github.com/aws/aws-sdk-go-v2/service/athena/types"
	"github.com/aws/aws-sdk-go-v2/service/batch"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	gluetypes "github.com/aws/aws-sdk-go-v2/service/glue/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func httpError(status int) error {
	return &awshttp.ResponseError{
		ResponseError: &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: status}},
			Err:      errors.New(http.StatusText(status)),
		},
	}
}

// fakeS3 is an in-memory bucket store. Listings are served pageSize keys per
// page.
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string]map[string][]byte
	listErr  error
	copyErr  error
	pageSize int
	lists    int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string]map[string][]byte{}, pageSize: 2}
}

func (f *fakeS3) put(bucket, key string, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects[bucket] == nil {
		f.objects[bucket] = map[string][]byte{}
	}
	f.objects[bucket][key] = body
}

func (f *fakeS3) keys(bucket string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.objects[bucket]))
	for k := range f.objects[bucket] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	f.lists++
	f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	prefix := aws.ToString(in.Prefix)
	delim := aws.ToString(in.Delimiter)

	var matched []string
	for _, k := range f.keys(aws.ToString(in.Bucket)) {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if delim != "" && strings.Contains(strings.TrimPrefix(k, prefix), delim) {
			continue
		}
		matched = append(matched, k)
	}

	// The continuation token is the last key served, like S3's own.
	start := 0
	if tok := aws.ToString(in.ContinuationToken); tok != "" {
		start = sort.SearchStrings(matched, tok)
		if start < len(matched) && matched[start] == tok {
			start++
		}
	}
	end := min(start+f.pageSize, len(matched))
	out := &s3.ListObjectsV2Output{}
	for _, k := range matched[start:end] {
		out.Contents = append(out.Contents, s3types.Object{Key: aws.String(k)})
	}
	if end < len(matched) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(matched[end-1])
	}
	return out, nil
}

func (f *fakeS3) get(bucket, key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[bucket][key]
	return b, ok
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.get(aws.ToString(in.Bucket), aws.ToString(in.Key))
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.get(aws.ToString(in.Bucket), aws.ToString(in.Key)); !ok {
		return nil, &s3types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, _ := io.ReadAll(in.Body)
	f.put(aws.ToString(in.Bucket), aws.ToString(in.Key), body)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) CopyObject(_ context.Context, in *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	if f.copyErr != nil {
		return nil, f.copyErr
	}
	src, err := url.PathUnescape(aws.ToString(in.CopySource))
	if err != nil {
		return nil, err
	}
	bucket, key, _ := strings.Cut(src, "/")
	body, ok := f.get(bucket, key)
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	f.put(aws.ToString(in.Bucket), aws.ToString(in.Key), body)
	return &s3.CopyObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects[aws.ToString(in.Bucket)], aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

type fakeBatch struct {
	inputs []*batch.SubmitJobInput
	err    error
}

func (f *fakeBatch) SubmitJob(_ context.Context, in *batch.SubmitJobInput, _ ...func(*batch.Options)) (*batch.SubmitJobOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &batch.SubmitJobOutput{JobId: aws.String("job-" + strconv.Itoa(len(f.inputs))), JobName: in.JobName}, nil
}

type fakeSQS struct {
	bodies []string
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.bodies = append(f.bodies, aws.ToString(in.MessageBody))
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-" + strconv.Itoa(len(f.bodies)))}, nil
}

// fakeAthena succeeds every query after one RUNNING poll unless the query
// text is listed in fail.
type fakeAthena struct {
	mu      sync.Mutex
	queries []string
	polls   map[string]int
	fail    map[string]bool
	output  *fakeS3
}

func (f *fakeAthena) StartQueryExecution(_ context.Context, in *athena.StartQueryExecutionInput, _ ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, aws.ToString(in.QueryString))
	qid := "q" + strconv.Itoa(len(f.queries))
	if f.output != nil {
		bucket, prefix, _ := ParseS3URI(aws.ToString(in.ResultConfiguration.OutputLocation))
		f.output.put(bucket, strings.TrimSuffix(prefix, "/")+"/"+qid+".csv", []byte("id\n"))
		f.output.put(bucket, strings.TrimSuffix(prefix, "/")+"/"+qid+".csv.metadata", nil)
	}
	return &athena.StartQueryExecutionOutput{QueryExecutionId: aws.String(qid)}, nil
}

func (f *fakeAthena) GetQueryExecution(_ context.Context, in *athena.GetQueryExecutionInput, _ ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	qid := aws.ToString(in.QueryExecutionId)
	if f.polls == nil {
		f.polls = map[string]int{}
	}
	f.polls[qid]++
	idx, _ := strconv.Atoi(strings.TrimPrefix(qid, "q"))

	state := athenatypes.QueryExecutionStateRunning
	if f.polls[qid] > 1 {
		state = athenatypes.QueryExecutionStateSucceeded
		if f.fail[f.queries[idx-1]] {
			state = athenatypes.QueryExecutionStateFailed
		}
	}
	return &athena.GetQueryExecutionOutput{QueryExecution: &athenatypes.QueryExecution{
		QueryExecutionId: aws.String(qid),
		Status:           &athenatypes.QueryExecutionStatus{State: state, StateChangeReason: aws.String("syntax error")},
	}}, nil
}

// fakeGlue reports RUNNING for the first runningPolls polls.
type fakeGlue struct {
	startErr     error
	runningPolls int
	polls        int
	lastStatus   gluetypes.LastCrawlStatus
	started      []string
}

func (f *fakeGlue) StartCrawler(_ context.Context, in *glue.StartCrawlerInput, _ ...func(*glue.Options)) (*glue.StartCrawlerOutput, error) {
	f.started = append(f.started, aws.ToString(in.Name))
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &glue.StartCrawlerOutput{}, nil
}

func (f *fakeGlue) GetCrawler(_ context.Context, in *glue.GetCrawlerInput, _ ...func(*glue.Options)) (*glue.GetCrawlerOutput, error) {
	f.polls++
	state := gluetypes.CrawlerStateReady
	if f.polls <= f.runningPolls {
		state = gluetypes.CrawlerStateRunning
	}
	crawler := &gluetypes.Crawler{Name: in.Name, State: state}
	if f.lastStatus != "" {
		crawler.LastCrawl = &gluetypes.LastCrawlInfo{Status: f.lastStatus, ErrorMessage: aws.String("access denied")}
	}
	return &glue.GetCrawlerOutput{Crawler: crawler}, nil
}
