package aws

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	athenatypes "github.com/aws/aws-sdk-go-v2/service/athena/types"
)

// QueryRunner starts Athena queries and waits for a terminal state.
type QueryRunner struct {
	client    AthenaAPI
	workGroup string
	poll      time.Duration
	logger    *slog.Logger
}

func NewQueryRunner(client AthenaAPI, workGroup string, poll time.Duration, logger *slog.Logger) *QueryRunner {
	if poll <= 0 {
		poll = 2 * time.Second
	}
	return &QueryRunner{
		client:    client,
		workGroup: workGroup,
		poll:      poll,
		logger:    logger.With("component", "athena"),
	}
}

// Run executes query against database, writing results under outputLocation,
// and returns the query execution id once the query has succeeded.
func (r *QueryRunner) Run(ctx context.Context, query, database, outputLocation string) (string, error) {
	start, err := r.client.StartQueryExecution(ctx, &athena.StartQueryExecutionInput{
		QueryString:           aws.String(query),
		QueryExecutionContext: &athenatypes.QueryExecutionContext{Database: aws.String(database)},
		ResultConfiguration:   &athenatypes.ResultConfiguration{OutputLocation: aws.String(outputLocation)},
		WorkGroup:             aws.String(r.workGroup),
	})
	if err != nil {
		return "", fmt.Errorf("failed to start athena query: %w", err)
	}
	qid := aws.ToString(start.QueryExecutionId)
	r.logger.Info("started query", "query_id", qid, "database", database)

	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()
	for {
		out, err := r.client.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{QueryExecutionId: aws.String(qid)})
		if err != nil {
			return qid, fmt.Errorf("failed to get athena query %s: %w", qid, err)
		}
		var state athenatypes.QueryExecutionState
		var reason string
		if qe := out.QueryExecution; qe != nil && qe.Status != nil {
			state = qe.Status.State
			reason = aws.ToString(qe.Status.StateChangeReason)
		}
		switch state {
		case athenatypes.QueryExecutionStateSucceeded:
			r.logger.Info("query succeeded", "query_id", qid)
			return qid, nil
		case athenatypes.QueryExecutionStateFailed, athenatypes.QueryExecutionStateCancelled:
			return qid, fmt.Errorf("athena query %s ended in state %s: %s", qid, state, reason)
		}

		select {
		case <-ctx.Done():
			return qid, ctx.Err()
		case <-ticker.C:
		}
	}
}
