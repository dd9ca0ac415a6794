package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/selim-create/kg-growth/internal/adapters/mq/queue"
	"github.com/selim-create/kg-growth/internal/adapters/mq/worker"
	"github.com/selim-create/kg-growth/internal/adapters/repository"
	"github.com/selim-create/kg-growth/internal/domain/model"
	logging "github.com/selim-create/kg-growth/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	events chan queue.Event
}

func newMockQueue() *mockQueue {
	return &mockQueue{events: make(chan queue.Event, 10)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan queue.Event { return mq.events }

func (mq *mockQueue) Close() error {
	close(mq.events)
	return nil
}

// mockRecorder fails the first failures[visitID] writes of a visit.
type mockRecorder struct {
	mu       sync.Mutex
	saved    map[string][]repository.Record
	failures map[string]int
	calls    map[string]int
	delay    time.Duration
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{
		saved:    make(map[string][]repository.Record),
		failures: make(map[string]int),
		calls:    make(map[string]int),
	}
}

func (m *mockRecorder) SaveAll(_ context.Context, rs []repository.Record) (int, error) {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	visit := rs[0].VisitID
	m.calls[visit]++
	if m.failures[visit] > 0 {
		m.failures[visit]--
		return 0, errors.New("database unavailable")
	}
	m.saved[visit] = append(m.saved[visit], rs...)
	return len(rs), nil
}

func (m *mockRecorder) get(visit string) ([]repository.Record, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved[visit], m.calls[visit]
}

func (m *mockRecorder) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

func visit(id string) queue.Event {
	return model.HistoryEvent{
		ChildID:    "child-1",
		VisitID:    id,
		Sex:        model.SexMale,
		MeasuredAt: time.Now(),
		Results: []model.AssessmentResult{
			{MeasurementType: model.WeightForAge, Breakpoint: 30, Observed: 4.4, Percentile: 50, Category: model.CategoryNormal},
			{MeasurementType: model.HeightForAge, Breakpoint: 30, Observed: 54.7, Percentile: 48, Category: model.CategoryNormal},
		},
	}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker over a queue and recorder", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		rec := newMockRecorder()
		w := worker.NewInMemoryWorker(q, rec, worker.WithName("test-worker"), worker.WithRetryBackoff(time.Millisecond))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a visit event arrives", func() {
			q.events <- visit("visit-1")
			_ = q.Close()
			convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)

			convey.Convey("Then one record per result is written", func() {
				saved, calls := rec.get("visit-1")
				convey.So(calls, convey.ShouldEqual, 1)
				convey.So(saved, convey.ShouldHaveLength, 2)
				convey.So(saved[0].ChildID, convey.ShouldEqual, "child-1")
				convey.So(saved[1].MeasurementType, convey.ShouldEqual, model.HeightForAge)
				convey.So(w.Processed(), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the store fails transiently", func() {
			rec.failures["visit-2"] = 2
			q.events <- visit("visit-2")
			_ = q.Close()
			convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)

			convey.Convey("Then the write is retried until it succeeds", func() {
				saved, calls := rec.get("visit-2")
				convey.So(calls, convey.ShouldEqual, 3)
				convey.So(saved, convey.ShouldHaveLength, 2)
			})
		})

		convey.Convey("When the store keeps failing", func() {
			rec.failures["visit-3"] = 10
			q.events <- visit("visit-3")
			q.events <- visit("visit-4")
			_ = q.Close()
			convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)

			convey.Convey("Then the event is dropped and the next one is written", func() {
				saved3, calls3 := rec.get("visit-3")
				saved4, _ := rec.get("visit-4")
				convey.So(calls3, convey.ShouldEqual, 3)
				convey.So(saved3, convey.ShouldBeEmpty)
				convey.So(saved4, convey.ShouldHaveLength, 2)
			})
		})

		convey.Convey("When an event has no results", func() {
			q.events <- model.HistoryEvent{ChildID: "child-1", VisitID: "empty"}
			_ = q.Close()
			convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)

			_, calls := rec.get("empty")
			convey.So(calls, convey.ShouldEqual, 0)
		})

		convey.Convey("When the context is cancelled", func() {
			cancel()

			convey.Convey("Then the worker stops", func() {
				convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
			})
		})
	})

	convey.Convey("Given a worker with a drop handler", t, func() {
		_ = logging.Init()
		q := newMockQueue()
		rec := newMockRecorder()
		rec.failures["visit-5"] = 10
		var (
			mu      sync.Mutex
			dropped []string
		)
		w := worker.NewInMemoryWorker(q, rec,
			worker.WithRetries(1),
			worker.WithRetryBackoff(time.Millisecond),
			worker.WithDropHandler(func(_ context.Context, e queue.Event) {
				mu.Lock()
				defer mu.Unlock()
				dropped = append(dropped, e.ChildID+"/"+e.VisitID)
			}),
		)
		go w.Run(context.Background())
		q.events <- visit("visit-5")
		q.events <- visit("visit-6")
		_ = q.Close()
		convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)

		convey.Convey("Then only the dropped event is handed over", func() {
			mu.Lock()
			defer mu.Unlock()
			convey.So(dropped, convey.ShouldResemble, []string{"child-1/visit-5"})
			_, calls := rec.get("visit-5")
			convey.So(calls, convey.ShouldEqual, 2)
		})
	})

	convey.Convey("Given a worker that cannot drain in time", t, func() {
		_ = logging.Init()
		q := newMockQueue()
		rec := newMockRecorder()
		rec.delay = 200 * time.Millisecond
		w := worker.NewInMemoryWorker(q, rec)
		go w.Run(context.Background())
		q.events <- visit("slow-1")
		q.events <- visit("slow-2")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer shutdownCancel()
		err := w.Shutdown(shutdownCtx)

		convey.Convey("Then shutdown reports the timeout", func() {
			convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a pool over a real queue", t, func() {
		_ = logging.Init()
		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		rec := newMockRecorder()
		pool := worker.NewPool(4, q, rec)
		convey.So(pool.Size(), convey.ShouldEqual, 4)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.Convey("When events are enqueued and the pool shuts down", func() {
			ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
			for _, id := range ids {
				convey.So(q.Enqueue(ctx, visit(id)), convey.ShouldBeNil)
			}
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			err := pool.Shutdown(shutdownCtx)

			convey.Convey("Then every event is written before it returns", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(rec.total(), convey.ShouldEqual, len(ids))
				convey.So(pool.Processed(), convey.ShouldEqual, int64(len(ids)))
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a pool with no explicit size", t, func() {
		pool := worker.NewPool(0, newMockQueue(), newMockRecorder())
		convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
	})
}
