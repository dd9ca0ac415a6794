package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver

	"github.com/selim-create/kg-growth/internal/domain/model"
	"github.com/selim-create/kg-growth/pkg/logger"
	"github.com/selim-create/kg-growth/pkg/metrics"
)

const (
	defaultSQLitePath  = "growth-history.db"
	defaultPostgresDSN = "postgres://localhost/growth?sslmode=disable"
)

// dialect captures the few differences between the supported databases.
type dialect struct {
	name       string
	driverName string
	positional bool // $1 style placeholders
	floatType  string
}

var (
	sqliteDialect   = dialect{name: "sqlite", driverName: "sqlite", floatType: "REAL"}
	postgresDialect = dialect{name: "postgres", driverName: "pgx", positional: true, floatType: "DOUBLE PRECISION"}
)

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(q string) string {
	if !d.positional {
		return q
	}
	var b strings.Builder
	n := 0
	for _, c := range q {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func (d dialect) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS assessment_history (
			id TEXT PRIMARY KEY,
			child_id TEXT NOT NULL,
			visit_id TEXT,
			seq INTEGER NOT NULL,
			measured_at BIGINT NOT NULL,
			measurement_type TEXT NOT NULL,
			sex TEXT NOT NULL,
			breakpoint ` + d.floatType + ` NOT NULL,
			observed ` + d.floatType + ` NOT NULL,
			z_score ` + d.floatType + ` NOT NULL,
			percentile ` + d.floatType + ` NOT NULL,
			category TEXT NOT NULL,
			red_flags TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS assessment_history_child_idx
			ON assessment_history (child_id, measured_at)`,
		`DROP INDEX IF EXISTS assessment_history_visit_idx`,
		`CREATE UNIQUE INDEX IF NOT EXISTS assessment_history_child_visit_idx
			ON assessment_history (child_id, visit_id, measurement_type)`,
	}
}

// SQLStore persists history through database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	logger  logger.Logger
}

// NewSQLiteStore opens (creating if needed) a SQLite history database.
func NewSQLiteStore(ctx context.Context, path string, opts ...Option) (*SQLStore, error) {
	if path == "" {
		path = defaultSQLitePath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	o := buildOptions(opts)
	// SQLite serialises writers; one connection avoids SQLITE_BUSY.
	o.maxOpenConns = 1
	return openSQL(ctx, sqliteDialect, path, o)
}

// NewPostgresStore opens a Postgres history database.
func NewPostgresStore(ctx context.Context, dsn string, opts ...Option) (*SQLStore, error) {
	if dsn == "" {
		dsn = defaultPostgresDSN
	}
	return openSQL(ctx, postgresDialect, dsn, buildOptions(opts))
}

func openSQL(ctx context.Context, d dialect, dsn string, o options) (*SQLStore, error) {
	db, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.name, err)
	}
	db.SetMaxOpenConns(o.maxOpenConns)

	pingCtx, cancel := context.WithTimeout(ctx, o.pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.name, err)
	}
	for _, stmt := range d.schema() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create history schema: %w", err)
		}
	}
	o.logger.Info(ctx, "history store opened", logger.String("dialect", d.name))
	return &SQLStore{db: db, dialect: d, logger: o.logger}, nil
}

// Save implements Store.
func (s *SQLStore) Save(ctx context.Context, r Record) error {
	n, err := s.SaveAll(ctx, []Record{r})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: visit %s/%s %s", ErrDuplicate, r.ChildID, r.VisitID, r.MeasurementType)
	}
	return nil
}

// SaveAll implements Store within one transaction.
func (s *SQLStore) SaveAll(ctx context.Context, rs []Record) (added int, retErr error) {
	start := time.Now()
	defer func() { metrics.RecordHistoryWriteLatency(float64(time.Since(start).Milliseconds())) }()

	for _, r := range rs {
		if err := r.Validate(); err != nil {
			return 0, err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
			metrics.RecordErrorByComponent("repository", "write")
		}
	}()

	q := s.dialect.rebind(`INSERT INTO assessment_history
		(id, child_id, visit_id, seq, measured_at, measurement_type, sex,
		 breakpoint, observed, z_score, percentile, category, red_flags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`)
	for _, r := range rs {
		flags, err := json.Marshal(r.RedFlags)
		if err != nil {
			return 0, fmt.Errorf("encode red flags: %w", err)
		}
		res, err := tx.ExecContext(ctx, q,
			r.ID.String(), r.ChildID, nullable(r.VisitID), r.Seq, r.MeasuredAt.UTC().UnixNano(),
			string(r.MeasurementType), string(r.Sex),
			r.Breakpoint, r.Observed, r.ZScore, r.Percentile, string(r.Category), string(flags))
		if err != nil {
			return 0, fmt.Errorf("insert history: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("insert history: %w", err)
		}
		added += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return added, nil
}

// ListByChild implements Store.
func (s *SQLStore) ListByChild(ctx context.Context, childID string, limit int) ([]Record, error) {
	start := time.Now()
	defer func() { metrics.RecordHistoryQueryLatency(float64(time.Since(start).Milliseconds())) }()

	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(`SELECT
		id, child_id, visit_id, seq, measured_at, measurement_type, sex,
		breakpoint, observed, z_score, percentile, category, red_flags
		FROM assessment_history
		WHERE child_id = ?
		ORDER BY measured_at DESC, visit_id ASC, seq ASC
		LIMIT ?`), childID, limit)
	if err != nil {
		return nil, fmt.Errorf("select history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select history: %w", err)
	}
	if len(out) == 0 {
		metrics.RecordErrorByComponent("repository", "not_found")
		return nil, fmt.Errorf("%w: %s", ErrNotFound, childID)
	}
	return out, nil
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var (
		r          Record
		visit      sql.NullString
		measuredAt int64
	)
	var id, mt, sex, cat, flags string
	if err := rows.Scan(&id, &r.ChildID, &visit, &r.Seq, &measuredAt, &mt, &sex,
		&r.Breakpoint, &r.Observed, &r.ZScore, &r.Percentile, &cat, &flags); err != nil {
		return Record{}, fmt.Errorf("scan history: %w", err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Record{}, fmt.Errorf("scan history id: %w", err)
	}
	r.ID = parsed
	r.VisitID = visit.String
	r.MeasuredAt = time.Unix(0, measuredAt).UTC()
	r.MeasurementType = model.MeasurementType(mt)
	r.Sex = model.Sex(sex)
	r.Category = model.Category(cat)
	if err := json.Unmarshal([]byte(flags), &r.RedFlags); err != nil {
		return Record{}, fmt.Errorf("decode red flags: %w", err)
	}
	if r.RedFlags == nil {
		r.RedFlags = []model.RedFlag{}
	}
	return r, nil
}

// Count implements Store. Errors are logged and reported as zero.
func (s *SQLStore) Count(ctx context.Context) int {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM assessment_history`).Scan(&n); err != nil {
		s.logger.Warn(ctx, "history count failed", logger.Error(err))
		return 0
	}
	return n
}

// Close implements Store.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
