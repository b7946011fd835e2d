// Package transport holds the tomb-supervised worker pool the TCP server
// uses to drain client connections, adapted from the teacher's
// internal/worker.go.
package transport

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const taskChanSize = 100

// WorkerFunction is the unit of work a pool worker repeatedly executes.
type WorkerFunction = func(t *tomb.Tomb, task any) error

// WorkerPool runs up to n concurrent workers pulling tasks off a shared
// channel until the supervising tomb starts dying.
type WorkerPool struct {
	n     int
	tasks chan any
}

// NewWorkerPool builds a pool sized for n concurrent workers.
func NewWorkerPool(n int) WorkerPool {
	return WorkerPool{
		tasks: make(chan any, taskChanSize),
		n:     n,
	}
}

// AddTask enqueues a task for a worker to pick up.
func (pool *WorkerPool) AddTask(task any) {
	pool.tasks <- task
}

// Setup keeps the pool topped up with n active workers until t dies.
func (pool *WorkerPool) Setup(t *tomb.Tomb, work WorkerFunction) {
	log.Info().Int("workers", pool.n).Msg("worker pool starting")
	active := 0
	for {
		select {
		case <-t.Dying():
			return
		default:
			if active < pool.n {
				t.Go(func() error {
					err := pool.worker(t, work)
					active--
					return err
				})
				active++
			}
		}
	}
}

func (pool *WorkerPool) worker(t *tomb.Tomb, work WorkerFunction) error {
	select {
	case <-t.Dying():
		return nil
	case task := <-pool.tasks:
		if err := work(t, task); err != nil {
			log.Error().Err(err).Msg("worker exiting")
			return err
		}
	}
	return nil
}
