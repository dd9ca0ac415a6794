package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/selim-create/kg-growth/internal/adapters/mq/queue"
	"github.com/selim-create/kg-growth/internal/adapters/repository"
	"github.com/selim-create/kg-growth/pkg/logger"
	"github.com/selim-create/kg-growth/pkg/metrics"
)

const (
	defaultRetries = 2
	defaultBackoff = 50 * time.Millisecond
)

// Recorder persists the records of one visit.
type Recorder interface {
	SaveAll(ctx context.Context, rs []repository.Record) (int, error)
}

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Event
}

// Worker writes queued visit events to the history store.
type Worker interface {
	// Run consumes events until the queue is drained, ctx is cancelled or
	// the worker is stopped.
	Run(ctx context.Context)

	// Shutdown waits for Run to drain the queue. When ctx expires first the
	// worker is stopped and the remaining events are dropped.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue    Queue
	recorder Recorder
	name     string
	retries  int
	backoff  time.Duration

	onDrop func(ctx context.Context, e queue.Event)

	processed atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker reading q and writing to recorder.
func NewInMemoryWorker(q Queue, recorder Recorder, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		recorder: recorder,
		name:     "worker",
		retries:  defaultRetries,
		backoff:  defaultBackoff,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run implements Worker.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	events := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := w.process(ctx, e); err != nil {
				w.logger.Error(ctx, "history write dropped",
					logger.String("child_id", e.ChildID),
					logger.String("visit_id", e.VisitID),
					logger.Error(err),
				)
				if w.onDrop != nil {
					w.onDrop(ctx, e)
				}
			}
		}
	}
}

// Processed returns how many events were written.
func (w *InMemoryWorker) Processed() int64 { return w.processed.Load() }

// Shutdown implements Worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.stopOnce.Do(func() { close(w.stop) })
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, e queue.Event) error { //nolint:gocritic // hugeParam: value semantics over the channel
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	records := repository.RecordsFromEvent(e)
	if len(records) == 0 {
		return nil
	}

	var err error
	for attempt := 0; attempt <= w.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * w.backoff):
			case <-ctx.Done():
				return ctx.Err()
			case <-w.stop:
				return fmt.Errorf("worker stopped: %w", err)
			}
		}
		var added int
		added, err = w.recorder.SaveAll(ctx, records)
		if err == nil {
			metrics.RecordHistoryWrite("success")
			if added < len(records) {
				metrics.RecordHistoryDuplicate()
			}
			w.processed.Add(1)
			return nil
		}
		w.logger.Warn(ctx, "history write failed",
			logger.String("visit_id", e.VisitID),
			logger.Int("attempt", attempt+1),
			logger.Error(err),
		)
	}

	metrics.RecordHistoryWrite("failure")
	metrics.RecordWorkerError()
	metrics.RecordErrorByComponent("worker", "history_write")
	return fmt.Errorf("write history for visit %q: %w", e.VisitID, err)
}

// Pool manages multiple workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates workerCount workers. A count below one uses NumCPU.
func NewPool(workerCount int, q Queue, recorder Recorder, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(q, recorder, wopts...)
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns how many events the pool has written.
func (p *Pool) Processed() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.Processed()
	}
	return n
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	metrics.UpdateWorkerActiveCount(len(p.workers))
	p.logger.Info(ctx, "history workers started", logger.Int("workers", len(p.workers)))
}

// Shutdown closes the queue and waits for the workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	var firstErr error
	for i, w := range p.workers {
		if err := w.Shutdown(ctx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	metrics.UpdateWorkerActiveCount(0)
	return firstErr
}
