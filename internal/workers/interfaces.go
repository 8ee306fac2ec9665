package workers

import "context"

// Worker is a background job with a start/stop lifecycle. Start launches the
// job's goroutine and returns immediately; Stop cancels it and blocks until
// it has fully exited.
type Worker interface {
	Start(ctx context.Context)
	Stop()
}
