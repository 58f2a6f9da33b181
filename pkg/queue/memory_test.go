package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"ShadowTrade/pkg/logger"
)

type echoPayload struct {
	Symbol string `json:"symbol"`
}

type recordingJob struct {
	calls   atomic.Int32
	failFor int32
	perm    bool
	got     chan string
}

func (j *recordingJob) Name() string { return "recording" }
func (j *recordingJob) Type() string { return "test.echo" }

func (j *recordingJob) Handle(_ context.Context, msg Message) error {
	n := j.calls.Add(1)
	if n <= j.failFor {
		if j.perm {
			return Permanent(errors.New("bad payload"))
		}
		return errors.New("transient")
	}
	p, err := Decode[echoPayload](msg)
	if err != nil {
		return err
	}
	j.got <- p.Symbol
	return nil
}

func TestMemoryQueueDeliversPayload(t *testing.T) {
	q := NewMemoryQueue(logger.Nop(), &QueueConfig{Workers: 2})
	job := &recordingJob{got: make(chan string, 1)}
	q.RegisterJob(job)
	if err := q.Start(); err != nil {
		t.Fatal(err)
	}
	defer q.Stop(context.Background())

	id, err := q.Enqueue(context.Background(), "test.echo", echoPayload{Symbol: "SOLUSDT"})
	if err != nil || id == "" {
		t.Fatalf("enqueue: id=%q err=%v", id, err)
	}

	select {
	case s := <-job.got:
		if s != "SOLUSDT" {
			t.Fatalf("symbol = %q", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("job not handled")
	}
}

func TestMemoryQueueRetriesTransientErrors(t *testing.T) {
	q := NewMemoryQueue(logger.Nop(), &QueueConfig{RetryLimit: 2, RetryDelay: 5 * time.Millisecond})
	job := &recordingJob{failFor: 2, got: make(chan string, 1)}
	q.RegisterJob(job)
	_ = q.Start()
	defer q.Stop(context.Background())

	_, _ = q.Enqueue(context.Background(), "test.echo", echoPayload{Symbol: "BTCUSDT"})

	select {
	case <-job.got:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not succeed after retries")
	}
	if got := job.calls.Load(); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
}

func TestMemoryQueuePermanentErrorGoesToDeadLetters(t *testing.T) {
	q := NewMemoryQueue(logger.Nop(), &QueueConfig{RetryLimit: 5, RetryDelay: time.Millisecond})
	job := &recordingJob{failFor: 100, perm: true, got: make(chan string, 1)}
	q.RegisterJob(job)
	_ = q.Start()
	defer q.Stop(context.Background())

	_, _ = q.Enqueue(context.Background(), "test.echo", echoPayload{})

	deadline := time.Now().Add(2 * time.Second)
	for len(q.DeadLetters()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("message never dead-lettered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := job.calls.Load(); got != 1 {
		t.Fatalf("permanent error retried: calls = %d", got)
	}
}

func TestMemoryQueueRejectsUnknownType(t *testing.T) {
	q := NewMemoryQueue(logger.Nop(), nil)
	_ = q.Start()
	defer q.Stop(context.Background())
	if _, err := q.Enqueue(context.Background(), "nope", nil); err == nil {
		t.Fatal("expected error for unregistered type")
	}
}
