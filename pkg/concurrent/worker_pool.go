package concurrent

import (
	"context"
	"sync"

	"github.com/Highlander2003/EcoFlow/pkg/util"
)

type JobFunc[T any, G any] func(job T) G

type WorkerPool[T any, G any] struct {
	numWorkers int
	jobQueue   chan T
	results    chan G
	wg         sync.WaitGroup
}

func NewWorkerPool[T any, G any](numWorkers, jobQueueSize int) *WorkerPool[T, G] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &WorkerPool[T, G]{
		numWorkers: numWorkers,
		jobQueue:   make(chan T, jobQueueSize),
		results:    make(chan G, jobQueueSize),
	}
}

func (wp *WorkerPool[T, G]) worker(jobFunc JobFunc[T, G]) {
	defer wp.wg.Done()
	for job := range wp.jobQueue {
		wp.results <- jobFunc(job)
	}
}

func (wp *WorkerPool[T, G]) Start(jobFunc JobFunc[T, G]) {
	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(jobFunc)
	}
}

// Wait blocks until every worker returned, then closes the result channel. call after Close.
func (wp *WorkerPool[T, G]) Wait() {
	wp.wg.Wait()
	close(wp.results)
}

func (wp *WorkerPool[T, G]) AddJob(job T) {
	wp.jobQueue <- job
}

func (wp *WorkerPool[T, G]) CollectResults() chan G {
	return wp.results
}

func (wp *WorkerPool[T, G]) Close() {
	close(wp.jobQueue)
}

type indexed[T any] struct {
	idx int
	val T
}

// Map applies fn to every job on numWorkers goroutines and returns the results in job order.
// jobs not yet started when ctx is done are skipped and ErrCancelled is returned.
func Map[T any, G any](ctx context.Context, numWorkers int, jobs []T, fn JobFunc[T, G]) ([]G, error) {
	out := make([]G, len(jobs))
	if len(jobs) == 0 {
		return out, nil
	}

	wp := NewWorkerPool[indexed[T], indexed[G]](util.MinInt(numWorkers, len(jobs)), len(jobs))
	wp.Start(func(job indexed[T]) indexed[G] {
		if util.StopConcurrentOperation(ctx) {
			return indexed[G]{idx: -1}
		}
		return indexed[G]{idx: job.idx, val: fn(job.val)}
	})

	for i, job := range jobs {
		wp.AddJob(indexed[T]{idx: i, val: job})
	}
	wp.Close()
	wp.Wait()

	cancelled := false
	for res := range wp.CollectResults() {
		if res.idx < 0 {
			cancelled = true
			continue
		}
		out[res.idx] = res.val
	}
	if cancelled {
		return nil, util.WrapErrorf(ctx.Err(), util.ErrCancelled, "worker pool cancelled")
	}
	return out, nil
}
