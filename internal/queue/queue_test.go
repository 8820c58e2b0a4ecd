package queue

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestJobsReportTheirErrors(t *testing.T) {
	rqm := NewRequestQueueManager(4, 2)
	defer rqm.Shutdown()

	want := errors.New("boom")
	errc := make(chan error, 1)
	rqm.EnqueueJob(Job{Fn: func() error { return want }, Errc: errc})

	if err := <-errc; !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestShutdownDrainsQueuedJobs(t *testing.T) {
	rqm := NewRequestQueueManager(16, 1)

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		rqm.EnqueueJob(Job{Fn: func() error {
			ran.Add(1)
			return nil
		}})
	}

	rqm.Shutdown()
	rqm.Shutdown()

	if got := ran.Load(); got != 10 {
		t.Fatalf("expected 10 jobs to run, got %d", got)
	}
	if rqm.Depth() != 0 {
		t.Fatalf("expected empty queue, got %d", rqm.Depth())
	}
}
