package utils

import (
	"sync"
)

// Job represents a task to be executed by a worker.
type Job struct {
	Task func()
}

// WorkerPool manages a fixed number of workers executing jobs. At most `workers`
// jobs run at the same time no matter how many are submitted.
type WorkerPool struct {
	workers   int
	jobQueue  chan Job
	waitGroup sync.WaitGroup
	closeOnce sync.Once
}

// NewWorkerPool creates a new WorkerPool with the specified number of workers.
func NewWorkerPool(workers int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	pool := &WorkerPool{
		workers:  workers,
		jobQueue: make(chan Job, workers),
	}

	pool.waitGroup.Add(workers)
	for i := 0; i < workers; i++ {
		go pool.worker()
	}

	return pool
}

// Workers returns the size of the pool.
func (wp *WorkerPool) Workers() int {
	return wp.workers
}

// worker processes jobs from the jobQueue.
func (wp *WorkerPool) worker() {
	defer wp.waitGroup.Done()
	for job := range wp.jobQueue {
		job.Task()
	}
}

// Submit adds a new job to the worker pool. It blocks while all workers are busy
// and the queue is full.
func (wp *WorkerPool) Submit(task func()) {
	wp.jobQueue <- Job{Task: task}
}

// Shutdown waits for all submitted jobs to finish and then stops the workers.
// Calling it more than once is safe.
func (wp *WorkerPool) Shutdown() {
	wp.closeOnce.Do(func() {
		close(wp.jobQueue)
	})
	wp.waitGroup.Wait()
}

// RunBatch executes every task on a pool of the given size and returns once all of
// them have finished. The pool lives only for the duration of the batch.
func RunBatch(workers int, tasks []func()) {
	pool := NewWorkerPool(min(workers, max(len(tasks), 1)))
	for _, task := range tasks {
		pool.Submit(task)
	}
	pool.Shutdown()
}
