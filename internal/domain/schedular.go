package domain

import "context"

// Task is a named unit the scheduler triggers periodically: a pipeline run or
// a table build.
type Task interface {
	Name() string
	Schedule() string
	Run(ctx context.Context) error
}

type Schedular interface {
	Start(ctx context.Context) error
	Stop()

	AddTask(task Task) error
	RemoveTask(name string) error
}
