package domain

import "errors"

var (
	// ErrUpstreamListing means work items or the known-id cache could not be
	// enumerated. It aborts the invocation.
	ErrUpstreamListing = errors.New("upstream listing failed")

	// ErrMalformedItem marks a single item that is skipped with a warning.
	ErrMalformedItem = errors.New("malformed work item")

	// ErrDispatch marks a failed dispatch of a single item.
	ErrDispatch = errors.New("dispatch failed")

	// ErrConfiguration is returned for missing or invalid settings and secrets.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrRetryable marks transient dispatch failures that may be attempted again.
	ErrRetryable = errors.New("retryable")

	// ErrPipelineNotFound is returned when no pipeline is registered under a name.
	ErrPipelineNotFound = errors.New("pipeline not found")

	// ErrRunNotFound is returned when a run report does not exist.
	ErrRunNotFound = errors.New("run not found")
)
