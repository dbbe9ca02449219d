package driving

import "context"

// Scheduler runs the daily backup pass: due-task discovery, retention
// enforcement, backup execution and result reporting.
type Scheduler interface {
	// Start begins the daily loop.
	// Blocks until the context is cancelled or the control channel is
	// permanently disabled.
	Start(ctx context.Context) error

	// Stop gracefully stops the loop.
	Stop() error
}
