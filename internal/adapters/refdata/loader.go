package refdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/selim-create/kg-growth/internal/domain/model"
	"github.com/selim-create/kg-growth/internal/domain/reference"
	"github.com/selim-create/kg-growth/pkg/logger"
)

// Loader builds a reference catalog from a Source.
type Loader struct {
	source Source
	prefix string
	logger logger.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithPrefix limits loading to keys under prefix.
func WithPrefix(prefix string) LoaderOption {
	return func(l *Loader) { l.prefix = prefix }
}

// WithLogger sets the logger.
func WithLogger(lg logger.Logger) LoaderOption {
	return func(l *Loader) {
		if lg != nil {
			l.logger = lg
		}
	}
}

// NewLoader creates a loader for source.
func NewLoader(source Source, opts ...LoaderOption) *Loader {
	l := &Loader{source: source}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = logger.Get().Named("refdata")
	}
	return l
}

// Entries resolves which objects hold which tables: the manifest when one is
// present under the prefix, the file naming convention otherwise.
func (l *Loader) Entries(ctx context.Context) ([]Entry, error) {
	keys, err := l.source.List(ctx, l.prefix)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		if path.Base(k) != ManifestName {
			continue
		}
		data, err := l.read(ctx, k)
		if err != nil {
			return nil, err
		}
		return ParseManifest(data, path.Dir(k))
	}

	var out []Entry
	for _, k := range keys {
		if e, ok := EntryFromKey(k); ok {
			out = append(out, e)
		}
	}
	sortEntries(out)
	return out, nil
}

// Load parses every table and returns a validated catalog. Any parse or
// validation failure is fatal and wraps model.ErrMalformedReferenceData.
func (l *Loader) Load(ctx context.Context) (*reference.Catalog, error) {
	start := time.Now()
	entries, err := l.Entries(ctx)
	if err != nil {
		return nil, fmt.Errorf("refdata: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w under %q (%s)", ErrNoTables, l.prefix, l.source.Driver())
	}

	tables := make([]*reference.Table, 0, len(entries))
	for _, e := range entries {
		t, err := l.loadTable(ctx, e)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
		l.logger.Debug(ctx, "reference table parsed",
			logger.String("key", e.Key),
			logger.String("measurement_type", string(e.MeasurementType)),
			logger.String("sex", string(e.Sex)),
			logger.Int("rows", t.Len()),
		)
	}

	cat, err := reference.NewCatalog(tables...)
	if err != nil {
		return nil, err
	}
	l.logger.Info(ctx, "reference data loaded",
		logger.String("driver", string(l.source.Driver())),
		logger.Int("tables", cat.Len()),
		logger.Int("rows", cat.RowCount()),
		logger.Duration("took", time.Since(start)),
	)
	return cat, nil
}

func (l *Loader) loadTable(ctx context.Context, e Entry) (*reference.Table, error) {
	rc, err := l.source.Open(ctx, e.Key)
	if err != nil {
		return nil, fmt.Errorf("refdata %s: %w", e.Key, err)
	}
	defer func() { _ = rc.Close() }()

	rows, err := Parse(rc, e.MeasurementType)
	if err != nil {
		if errors.Is(err, ErrParse) {
			return nil, fmt.Errorf("%w: %s: %w", model.ErrMalformedReferenceData, e.Key, err)
		}
		return nil, fmt.Errorf("refdata %s: %w", e.Key, err)
	}
	t, err := reference.NewTable(e.MeasurementType, e.Sex, rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.Key, err)
	}
	return t, nil
}

func (l *Loader) read(ctx context.Context, key string) ([]byte, error) {
	rc, err := l.source.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}
