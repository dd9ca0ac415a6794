package reference

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/selim-create/kg-growth/pkg/logger"
	"github.com/selim-create/kg-growth/pkg/metrics"
)

// ErrNoCatalog is returned by Registry users before the first catalog is published.
var ErrNoCatalog = errors.New("no reference catalog loaded")

// Registry publishes the live catalog as an atomically swapped snapshot.
// Readers never block; a reload replaces the whole table set at once.
type Registry struct {
	current  atomic.Pointer[Catalog]
	loadedAt atomic.Int64
}

// NewRegistry creates a registry, optionally seeded with an initial catalog.
func NewRegistry(initial *Catalog) *Registry {
	r := &Registry{}
	if initial != nil {
		r.Swap(initial)
	}
	return r
}

// Current returns the live catalog, or nil before the first Swap.
func (r *Registry) Current() *Catalog { return r.current.Load() }

// Swap publishes c and returns the previous snapshot.
func (r *Registry) Swap(c *Catalog) *Catalog {
	prev := r.current.Swap(c)
	r.loadedAt.Store(time.Now().Unix())
	metrics.UpdateCatalogTables(c.Len())
	metrics.UpdateCatalogRows(c.RowCount())
	metrics.UpdateCatalogLastReload(float64(r.loadedAt.Load()))
	return prev
}

// LoadedAt returns when the live catalog was published.
func (r *Registry) LoadedAt() time.Time {
	ts := r.loadedAt.Load()
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0)
}

// LoadFunc builds a fresh catalog from the reference data source.
type LoadFunc func(ctx context.Context) (*Catalog, error)

// Reloader refreshes a Registry from a LoadFunc, on demand and on a ticker.
// A failed load keeps the previous snapshot.
type Reloader struct {
	registry *Registry
	load     LoadFunc
	interval time.Duration
	logger   logger.Logger

	mu       sync.Mutex // serialises loads
	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// ReloaderOption configures a Reloader.
type ReloaderOption func(*Reloader)

// WithReloadInterval enables periodic reloads. Zero disables them.
func WithReloadInterval(d time.Duration) ReloaderOption {
	return func(r *Reloader) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithReloaderLogger sets the logger.
func WithReloaderLogger(l logger.Logger) ReloaderOption {
	return func(r *Reloader) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewReloader creates a reloader for registry.
func NewReloader(registry *Registry, load LoadFunc, opts ...ReloaderOption) *Reloader {
	r := &Reloader{
		registry: registry,
		load:     load,
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get().Named("reference")
	}
	return r
}

// Reload loads a new catalog and publishes it.
func (r *Reloader) Reload(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	c, err := r.load(ctx)
	if err != nil {
		metrics.RecordCatalogReload("failure")
		r.logger.Error(ctx, "reference reload failed, keeping previous catalog", logger.Error(err))
		return err
	}
	r.registry.Swap(c)
	metrics.RecordCatalogReload("success")
	r.logger.Info(ctx, "reference catalog published",
		logger.Int("tables", c.Len()),
		logger.Int("rows", c.RowCount()),
		logger.Duration("took", time.Since(start)),
	)
	return nil
}

// Start launches the periodic reload loop when an interval is configured.
func (r *Reloader) Start(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stopChan:
				return
			case <-ticker.C:
				_ = r.Reload(ctx)
			}
		}
	}()
}

// Close stops the periodic loop and waits for it to exit.
func (r *Reloader) Close() error {
	r.stopOnce.Do(func() { close(r.stopChan) })
	r.wg.Wait()
	return nil
}
