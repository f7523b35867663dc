package riveraudit

import (
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
)

// NewInsertOnlyClient builds a River client that can enqueue audit jobs
// but runs no workers. Use it on nodes that only serve decisions.
func NewInsertOnlyClient(pool *pgxpool.Pool) (*river.Client[pgx.Tx], error) {
	return river.NewClient(riverpgxv5.New(pool), &river.Config{})
}

// NewWorkerClient builds a River client that both enqueues and works the
// audit queue. Call Start on the returned client to begin processing.
func NewWorkerClient(pool *pgxpool.Pool, w *Worker, maxWorkers int) (*river.Client[pgx.Tx], error) {
	if maxWorkers <= 0 {
		maxWorkers = 2
	}
	workers := river.NewWorkers()
	Register(workers, w)
	return river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			Queue: {MaxWorkers: maxWorkers},
		},
		Workers: workers,
	})
}
