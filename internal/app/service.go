// Package service wires the reference catalog, the assessment engine and the
// history pipeline into the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	eventqueue "github.com/selim-create/kg-growth/internal/adapters/mq/queue"
	workerpool "github.com/selim-create/kg-growth/internal/adapters/mq/worker"
	"github.com/selim-create/kg-growth/internal/adapters/refdata"
	"github.com/selim-create/kg-growth/internal/adapters/repository"
	"github.com/selim-create/kg-growth/internal/config"
	"github.com/selim-create/kg-growth/internal/domain/assessment"
	"github.com/selim-create/kg-growth/internal/domain/dedupe"
	"github.com/selim-create/kg-growth/internal/domain/model"
	"github.com/selim-create/kg-growth/internal/domain/reference"
	"github.com/selim-create/kg-growth/pkg/logger"
	"github.com/selim-create/kg-growth/pkg/metrics"
)

var (
	// ErrNotStarted is returned by operations that need a started service.
	ErrNotStarted = errors.New("service not started")
	// ErrNoSource is returned by Start when the memory reference driver is
	// configured without a source supplied through WithSource.
	ErrNoSource = errors.New("memory reference driver requires WithSource")
)

// Service implements the API dependencies for the growth assessment system.
type Service struct {
	mu sync.RWMutex

	cfg    *config.Config
	source refdata.Source
	store  repository.Store

	// Core components
	registry *reference.Registry
	reloader *reference.Reloader
	engine   *assessment.Engine
	deduper  dedupe.Deduper
	queue    *eventqueue.InMemoryQueue
	pool     *workerpool.Pool

	// State
	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig sets the configuration. Defaults from config.New are used otherwise.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithSource overrides the reference data source selected by the config.
func WithSource(src refdata.Source) Option {
	return func(s *Service) {
		if src != nil {
			s.source = src
		}
	}
}

// WithHistoryStore overrides the history store selected by the config.
func WithHistoryStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service. Nothing is loaded until Start.
func New(opts ...Option) *Service {
	s := &Service{}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg == nil {
		s.cfg = config.New(context.Background())
	}
	return s
}

// Start loads the reference catalog, builds the engine and starts the
// history writers. A catalog that fails to load aborts the start.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	cfg := s.cfg
	s.logger.Info(ctx, "starting growth service...",
		logger.String("refdata", cfg.RefData.Driver),
		logger.String("history", cfg.History.Driver),
	)

	if s.source == nil && cfg.RefData.Driver == config.RefDataDriverMemory {
		return fmt.Errorf("open reference source: %w", ErrNoSource)
	}
	if s.source == nil {
		src, err := refdata.Open(ctx, refdata.Config{
			Driver: refdata.Driver(cfg.RefData.Driver),
			Root:   cfg.RefData.Root,
			S3: refdata.S3Config{
				Bucket:          cfg.RefData.S3.Bucket,
				Region:          cfg.RefData.S3.Region,
				Endpoint:        cfg.RefData.S3.Endpoint,
				PathStyle:       cfg.RefData.S3.PathStyle,
				AccessKeyID:     cfg.RefData.S3.AccessKeyID,
				SecretAccessKey: cfg.RefData.S3.SecretAccessKey,
			},
		})
		if err != nil {
			return fmt.Errorf("open reference source: %w", err)
		}
		s.source = src
	}

	loader := refdata.NewLoader(s.source, refdata.WithPrefix(cfg.RefData.Prefix))
	catalog, err := loader.Load(ctx)
	if err != nil {
		metrics.RecordCatalogReload("failure")
		return fmt.Errorf("load reference catalog: %w", err)
	}
	metrics.RecordCatalogReload("success")
	s.registry = reference.NewRegistry(catalog)
	s.reloader = reference.NewReloader(s.registry, loader.Load,
		reference.WithReloadInterval(cfg.ReloadInterval()),
	)

	s.engine, err = assessment.NewEngine(
		assessment.WithCatalog(s.registry),
		assessment.WithThresholds(cfg.Thresholds()),
		assessment.WithPolicy(cfg.Policy()),
		assessment.WithExtendedZ(cfg.Engine.ExtendedZ),
		assessment.WithWeightForLength(cfg.Engine.IncludeWeightForLength),
	)
	if err != nil {
		return err
	}

	if s.store == nil {
		s.store, err = repository.Open(ctx, repository.Config{
			Driver:      repository.Driver(cfg.History.Driver),
			SQLitePath:  cfg.History.SQLitePath,
			PostgresDSN: cfg.History.PostgresDSN,
		})
		if err != nil {
			return fmt.Errorf("open history store: %w", err)
		}
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(cfg.History.DedupeSize))

	// Background work outlives the start context and ends on Stop.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	if s.store != nil {
		s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(cfg.History.QueueSize))
		s.pool = workerpool.NewPool(cfg.History.WorkerCount, s.queue, s.store,
			workerpool.WithDropHandler(s.forgetDropped))
		s.pool.Start(runCtx)
	}
	s.reloader.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "growth service started",
		logger.Int("tables", catalog.Len()),
		logger.Int("rows", catalog.RowCount()),
		logger.Bool("history", s.store != nil),
		logger.Int("workers", s.workerCount()),
	)
	return nil
}

// Stop drains the history queue and releases every component. Events still
// queued when ctx expires are dropped.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping growth service...")

	var errs []error
	if err := s.reloader.Close(); err != nil {
		errs = append(errs, err)
	}
	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain history queue: %w", err))
		}
	}
	s.cancel()
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close history store: %w", err))
		}
		s.store = nil
	}

	s.started = false
	s.logger.Info(ctx, "growth service stopped")
	return errors.Join(errs...)
}

// Assess runs one assessment against the live catalog.
func (s *Service) Assess(_ context.Context, m model.Measurement) (model.AssessmentResult, error) {
	engine := s.currentEngine()
	if engine == nil {
		return model.AssessmentResult{}, ErrNotStarted
	}
	return engine.Assess(m)
}

// AssessVisit assesses every measurement present on the visit.
func (s *Service) AssessVisit(_ context.Context, v model.Visit) assessment.BatchResult {
	engine := s.currentEngine()
	if engine == nil {
		return assessment.BatchResult{}
	}
	return engine.AssessAll(v)
}

func (s *Service) currentEngine() *assessment.Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// SeenAndRecord atomically checks whether a visit key was seen and records it
// if not.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	return s.deduper.SeenAndRecord(ctx, id)
}

// forgetDropped lets a visit whose history write was dropped be recorded on
// resubmission.
func (s *Service) forgetDropped(ctx context.Context, e model.HistoryEvent) {
	if e.VisitID == "" {
		return
	}
	s.deduper.Unrecord(ctx, dedupe.VisitKey(e.ChildID, e.VisitID))
}

// Unrecord forgets a visit key so a failed recording can be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Size returns the number of visit keys in the dedupe window.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

// HistoryEnabled reports whether a history store is configured.
func (s *Service) HistoryEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started && s.store != nil
}

// Enqueue hands a visit outcome to the history writers.
func (s *Service) Enqueue(ctx context.Context, e model.HistoryEvent) error { //nolint:gocritic // hugeParam: value semantics over the queue
	s.mu.RLock()
	q := s.queue
	s.mu.RUnlock()
	if q == nil {
		return ErrNotStarted
	}
	s.logger.Debug(ctx, "enqueueing history event",
		logger.String("child_id", e.ChildID),
		logger.String("visit_id", e.VisitID),
		logger.Int("results", len(e.Results)),
	)
	return q.Enqueue(ctx, e)
}

// History returns a child's recorded assessments, newest first.
func (s *Service) History(ctx context.Context, childID string, limit int) ([]repository.Record, error) {
	s.mu.RLock()
	store := s.store
	s.mu.RUnlock()
	if store == nil {
		return nil, ErrNotStarted
	}
	return store.ListByChild(ctx, childID, limit)
}

// ReferenceSummary lists the live tables and when they were loaded.
func (s *Service) ReferenceSummary() ([]reference.TableInfo, time.Time) {
	s.mu.RLock()
	reg := s.registry
	s.mu.RUnlock()
	if reg == nil {
		return nil, time.Time{}
	}
	return reg.Current().Summary(), reg.LoadedAt()
}

// Reload rebuilds the catalog from the source. The previous catalog stays
// live when the reload fails.
func (s *Service) Reload(ctx context.Context) error {
	s.mu.RLock()
	r := s.reloader
	s.mu.RUnlock()
	if r == nil {
		return ErrNotStarted
	}
	return r.Reload(ctx)
}

func (s *Service) workerCount() int {
	if s.pool == nil {
		return 0
	}
	return s.pool.Size()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":        s.started,
		"refdataDriver":  s.cfg.RefData.Driver,
		"historyDriver":  s.cfg.History.Driver,
		"historyEnabled": s.store != nil,
	}
	if !s.started {
		return stats
	}

	cat := s.registry.Current()
	stats["tables"] = cat.Len()
	stats["rows"] = cat.RowCount()
	stats["loadedAt"] = s.registry.LoadedAt().UTC().Format(time.RFC3339)
	stats["dedupeSize"] = s.deduper.Size()

	if s.store != nil {
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["queueCapacity"] = s.queue.Capacity()
		stats["workerCount"] = s.pool.Size()
		stats["recorded"] = s.pool.Processed()
		stats["historyRecords"] = s.store.Count(ctx)

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerActiveCount(s.pool.Size())
	}
	return stats
}
