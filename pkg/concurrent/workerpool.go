package concurrent

import (
	"context"
	"fmt"
	"runtime/debug"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// WorkerPool runs independent tasks with bounded parallelism.
type WorkerPool struct {
	workerCount int
}

func NewWorkerPool(workerCount int) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &WorkerPool{workerCount: workerCount}
}

// RunAll runs every task to completion and returns their errors by task
// position, nil for tasks that succeeded. A failing or panicking task never
// cancels its siblings. Tasks not yet started when ctx is done report ctx.Err().
func (wp *WorkerPool) RunAll(ctx context.Context, tasks ...func(ctx context.Context) error) []error {
	errs := make([]error, len(tasks))
	if len(tasks) == 0 {
		return errs
	}

	g := new(errgroup.Group)
	g.SetLimit(wp.workerCount)
	for i, task := range tasks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			errs[i] = runRecovered(ctx, task)
			return nil
		})
	}
	_ = g.Wait() // tasks always return nil to the group
	return errs
}

func runRecovered(ctx context.Context, task func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("task panicked: %v\n%s", r, debug.Stack())
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task(ctx)
}
