package interfaces

import "context"

// Dispatcher manages concurrent execution of pending generation jobs.
// A fixed worker pool polls storage for pending jobs, runs each through
// the pipeline engine, and tracks in-flight work for cancellation.
type Dispatcher interface {
	// Start launches the worker pool. Safe to call once.
	Start() error

	// Stop drains in-flight jobs and stops the workers. Blocks until all
	// workers have exited or the context expires.
	Stop(ctx context.Context) error

	// Cancel requests cancellation of an in-flight job. Returns false when
	// the job is not currently executing.
	Cancel(jobID string) bool

	// ActiveCount returns the number of jobs currently executing.
	ActiveCount() int
}
