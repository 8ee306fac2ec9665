// Package workers hosts the background jobs that move queued local changes
// to the remote store (uploader) and merge remote state back into the local
// store (puller).
package workers

import "context"

// Workers aggregates the engine's background jobs.
type Workers struct {
	workers []Worker
}

func NewWorkers(ws ...Worker) *Workers {
	return &Workers{workers: ws}
}

func (w *Workers) Start(ctx context.Context) {
	for _, worker := range w.workers {
		worker.Start(ctx)
	}
}

// Stop stops workers in reverse start order and blocks until all background
// goroutines have exited.
func (w *Workers) Stop() {
	for i := len(w.workers) - 1; i >= 0; i-- {
		w.workers[i].Stop()
	}
}
