// Package queue is a bounded job queue with a fixed worker pool. The API
// layer pushes request handlers through it to cap concurrent work, and the
// session registry uses a second instance to pace startup restores.
package queue

import (
	"log"
	"sync"
)

// Job is one unit of queued work. When Errc is set the result of Fn is
// delivered there, so a caller can block for completion.
type Job struct {
	Fn   func() error
	Errc chan error
}

type RequestQueueManager struct {
	JobQueue   chan Job
	MaxWorkers int
	wg         sync.WaitGroup
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
			log.Printf("queue worker %d stopped", workerID)
		}(i)
	}
}

// EnqueueJob blocks while the queue is full, which is the backpressure the
// queue exists to provide.
func (rqm *RequestQueueManager) EnqueueJob(job Job) {
	rqm.JobQueue <- job
}

// Depth reports how many jobs are waiting. Exported for the gauge in the
// metrics layer.
func (rqm *RequestQueueManager) Depth() int {
	return len(rqm.JobQueue)
}

// Shutdown closes the queue and waits for in-flight jobs to finish. Enqueue
// after Shutdown panics.
func (rqm *RequestQueueManager) Shutdown() {
	close(rqm.JobQueue)
	rqm.wg.Wait()
}
