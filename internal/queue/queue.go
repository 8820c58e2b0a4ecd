package queue

import (
	"log"
	"sync"
)

type Job struct {
	Fn   func() error
	Errc chan error
}

// RequestQueueManager runs HTTP handler jobs on a fixed pool of workers.
type RequestQueueManager struct {
	JobQueue   chan Job
	MaxWorkers int
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

func NewRequestQueueManager(queueSize int, maxWorkers int) *RequestQueueManager {
	manager := &RequestQueueManager{
		JobQueue:   make(chan Job, queueSize),
		MaxWorkers: maxWorkers,
	}
	manager.startWorkers()
	return manager
}

func (rqm *RequestQueueManager) startWorkers() {
	for i := 0; i < rqm.MaxWorkers; i++ {
		rqm.wg.Add(1)
		go func(workerID int) {
			defer rqm.wg.Done()
			for job := range rqm.JobQueue {
				err := job.Fn()
				if job.Errc != nil {
					job.Errc <- err
				}
			}
			log.Printf("[queue] worker %d stopped", workerID)
		}(i)
	}
	log.Printf("[queue] %d workers started", rqm.MaxWorkers)
}

// EnqueueJob blocks while the queue is full.
func (rqm *RequestQueueManager) EnqueueJob(job Job) {
	rqm.JobQueue <- job
}

// Depth reports the number of jobs waiting for a worker.
func (rqm *RequestQueueManager) Depth() int {
	return len(rqm.JobQueue)
}

// Shutdown lets the workers drain queued jobs and waits for them. It is safe
// to call more than once.
func (rqm *RequestQueueManager) Shutdown() {
	rqm.closeOnce.Do(func() {
		close(rqm.JobQueue)
	})
	rqm.wg.Wait()
}
