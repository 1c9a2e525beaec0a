package operation

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/tomasbasham/git-snapshot/internal/snapshot"
)

// Runner executes a single snapshot. *snapshot.Pipeline implements this
// interface.
type Runner interface {
	Run(ctx context.Context, cfg snapshot.Config) (*snapshot.Result, error)
}

// Worker executes snapshot operations one at a time against a fixed bucket.
// Operations submitted while another is running stay pending until it
// finishes.
type Worker struct {
	store  Store
	runner Runner
	bucket string
	log    logrus.FieldLogger

	mu sync.Mutex
}

// NewWorker creates a Worker that publishes into bucket.
func NewWorker(store Store, runner Runner, bucket string, log logrus.FieldLogger) *Worker {
	return &Worker{
		store:  store,
		runner: runner,
		bucket: bucket,
		log:    log,
	}
}

// Run executes the snapshot for the operation id and transitions it through
// running → complete | failed.
//
// Run is intended to be called in a separate goroutine; it owns the full
// lifecycle of the operation from the moment it is called.
func (w *Worker) Run(ctx context.Context, id string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	log := w.log.WithField("operation", id)

	op, err := w.store.Get(id)
	if err != nil {
		log.WithError(err).Error("Operation disappeared before it could run")
		return
	}
	if err := w.store.MarkRunning(id); err != nil {
		// If we cannot even mark it running the store is broken; nothing to do.
		return
	}

	result, err := w.runner.Run(ctx, snapshot.Config{
		Bucket: w.bucket,
		Prefix: op.Prefix,
		Root:   op.Root,
	})
	if err != nil {
		log.WithError(err).Error("Snapshot failed")
		_ = w.store.MarkFailed(id, err)
		return
	}

	log.WithField("location", result.Location).Info("Snapshot published")
	_ = w.store.MarkComplete(id, result.Key, result.Location)
}
