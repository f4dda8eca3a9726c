// Package journal keeps an append-only history of learning decisions so
// sensitivity drift can be inspected after the fact.
package journal

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/mikeyg42/rlight/internal/sensitivity"
)

const schema = `
CREATE TABLE IF NOT EXISTS adjustments (
	id               TEXT PRIMARY KEY,
	recorded_at      TEXT NOT NULL,
	zone             TEXT NOT NULL,
	raw              DOUBLE PRECISION NOT NULL,
	target           INTEGER NOT NULL,
	actual           INTEGER NOT NULL,
	error            INTEGER NOT NULL,
	old_coefficient  DOUBLE PRECISION NOT NULL,
	new_coefficient  DOUBLE PRECISION NOT NULL,
	reset            BOOLEAN NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_adjustments_zone ON adjustments(zone, recorded_at);
`

// timeLayout is fixed width so recorded_at sorts chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry is one recorded learning decision.
type Entry struct {
	ID         string
	RecordedAt time.Time
	sensitivity.Adjustment
}

// ZoneSummary aggregates the entries of one zone.
type ZoneSummary struct {
	Zone            sensitivity.Zone
	Count           int
	Resets          int
	MeanError       float64
	StdDevError     float64
	LastCoefficient float64
}

type row struct {
	ID         string  `db:"id"`
	RecordedAt string  `db:"recorded_at"`
	Zone       string  `db:"zone"`
	Raw        float64 `db:"raw"`
	Target     int     `db:"target"`
	Actual     int     `db:"actual"`
	Error      int     `db:"error"`
	Old        float64 `db:"old_coefficient"`
	New        float64 `db:"new_coefficient"`
	Reset      bool    `db:"reset"`
}

// Journal stores entries in SQLite or PostgreSQL.
type Journal struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// DriverFor picks the database/sql driver for dsn: postgres:// and
// postgresql:// URLs use lib/pq, anything else is a SQLite path.
func DriverFor(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	return "sqlite"
}

// Open connects to dsn and creates the schema if needed.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*Journal, error) {
	if logger == nil {
		logger = zap.L()
	}
	driver := DriverFor(dsn)

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma: %w", err)
		}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping journal: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}

	logger = logger.Named("journal").With(zap.String("driver", driver))
	logger.Info("Journal ready")
	return &Journal{db: db, logger: logger}, nil
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends adj with a fresh ID.
func (j *Journal) Record(ctx context.Context, at time.Time, adj sensitivity.Adjustment) (Entry, error) {
	e := Entry{ID: uuid.NewString(), RecordedAt: at.UTC(), Adjustment: adj}

	query := j.db.Rebind(`INSERT INTO adjustments
		(id, recorded_at, zone, raw, target, actual, error, old_coefficient, new_coefficient, reset)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := j.db.ExecContext(ctx, query,
		e.ID, e.RecordedAt.Format(timeLayout), adj.Zone.String(), adj.Raw,
		adj.Target, adj.Actual, adj.Error, adj.Old, adj.New, adj.Reset)
	if err != nil {
		return Entry{}, fmt.Errorf("record adjustment: %w", err)
	}

	j.logger.Debug("Recorded adjustment", zap.String("id", e.ID), zap.Stringer("zone", adj.Zone))
	return e, nil
}

// Entries returns the most recent entries, newest first. limit <= 0 returns
// all of them.
func (j *Journal) Entries(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT * FROM adjustments ORDER BY recorded_at DESC, id`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []row
	if err := j.db.SelectContext(ctx, &rows, j.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("query adjustments: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		e, err := r.entry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Summary aggregates every entry per zone, in zone order. Zones without
// entries are omitted.
func (j *Journal) Summary(ctx context.Context) ([]ZoneSummary, error) {
	entries, err := j.Entries(ctx, 0)
	if err != nil {
		return nil, err
	}
	return Summarize(entries), nil
}

// Summarize aggregates entries per zone. The error statistics use the
// sample standard deviation; a zone with one entry has zero spread.
func Summarize(entries []Entry) []ZoneSummary {
	byZone := make(map[sensitivity.Zone][]Entry)
	for _, e := range entries {
		byZone[e.Zone] = append(byZone[e.Zone], e)
	}

	var out []ZoneSummary
	for _, z := range sensitivity.Zones {
		zs := byZone[z]
		if len(zs) == 0 {
			continue
		}
		sort.SliceStable(zs, func(a, b int) bool { return zs[a].RecordedAt.Before(zs[b].RecordedAt) })

		errs := make([]float64, len(zs))
		s := ZoneSummary{Zone: z, Count: len(zs)}
		for i, e := range zs {
			errs[i] = float64(e.Error)
			if e.Reset {
				s.Resets++
			}
		}
		if len(errs) > 1 {
			s.MeanError, s.StdDevError = stat.MeanStdDev(errs, nil)
		} else {
			s.MeanError = errs[0]
		}
		s.LastCoefficient = zs[len(zs)-1].New
		out = append(out, s)
	}
	return out
}

func (r row) entry() (Entry, error) {
	at, err := time.Parse(timeLayout, r.RecordedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("adjustment %s: bad timestamp: %w", r.ID, err)
	}
	zone, err := sensitivity.ParseZone(r.Zone)
	if err != nil {
		return Entry{}, fmt.Errorf("adjustment %s: %w", r.ID, err)
	}
	return Entry{
		ID:         r.ID,
		RecordedAt: at,
		Adjustment: sensitivity.Adjustment{
			Zone:   zone,
			Raw:    r.Raw,
			Target: r.Target,
			Actual: r.Actual,
			Error:  r.Error,
			Old:    r.Old,
			New:    r.New,
			Reset:  r.Reset,
		},
	}, nil
}
