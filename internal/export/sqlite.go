package export

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/signalsfoundry/production-optimizer/core"
	"github.com/signalsfoundry/production-optimizer/internal/logging"
)

// ErrRunNotFound is returned when a run ID has no stored rows.
var ErrRunNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	pipeline      TEXT NOT NULL,
	max_cycles    INTEGER NOT NULL,
	layout        TEXT NOT NULL,
	vectors       INTEGER NOT NULL,
	best_index    INTEGER NOT NULL,
	best_profit   REAL NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS results (
	run_id     TEXT NOT NULL,
	idx        INTEGER NOT NULL,
	decisions  TEXT NOT NULL,
	profit     REAL NOT NULL,
	revenue    REAL NOT NULL,
	cost       REAL NOT NULL,
	cycles     INTEGER NOT NULL,
	starved    INTEGER NOT NULL,
	PRIMARY KEY (run_id, idx),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
`

// Store persists optimization reports in SQLite.
type Store struct {
	db *sql.DB
}

// Run is the summary row of one stored report.
type Run struct {
	ID         string
	Pipeline   string
	MaxCycles  int
	Layout     []string
	Vectors    int
	BestIndex  int
	BestProfit float64
	CreatedAt  time.Time
}

// Row is one stored evaluation.
type Row struct {
	Index     int
	Decisions string
	Profit    float64
	Revenue   float64
	Cost      float64
	Cycles    int
	Starved   bool
}

// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveReport stores rep and every row of its table in one transaction. The
// run ID is taken from ctx when a run logger attached one, otherwise a new
// UUID is generated.
func (s *Store) SaveReport(ctx context.Context, rep *core.OptimizationReport) (string, error) {
	if rep == nil || len(rep.Results) == 0 {
		return "", fmt.Errorf("save report: empty report")
	}
	id := logging.RunIDFromContext(ctx)
	if id == "" {
		id = uuid.New().String()
	}
	best := rep.Best()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, pipeline, max_cycles, layout, vectors, best_index, best_profit, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, rep.Pipeline, rep.MaxCycles, strings.Join(rep.Layout.Names(), ","),
		len(rep.Results), rep.BestIndex, best.Result.Profit,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO results (run_id, idx, decisions, profit, revenue, cost, cycles, starved)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare results: %w", err)
	}
	defer stmt.Close()

	for i, ev := range rep.Results {
		r := ev.Result
		if _, err := stmt.ExecContext(ctx, id, i, ev.Decisions.String(), r.Profit, r.Revenue, r.Cost, r.Cycles, r.Starved); err != nil {
			return "", fmt.Errorf("insert result %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// Runs lists stored runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, pipeline, max_cycles, layout, vectors, best_index, best_profit, created_at
		 FROM runs ORDER BY created_at DESC, run_id`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r       Run
			layout  string
			created string
		)
		if err := rows.Scan(&r.ID, &r.Pipeline, &r.MaxCycles, &layout, &r.Vectors, &r.BestIndex, &r.BestProfit, &created); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if layout != "" {
			r.Layout = strings.Split(layout, ",")
		}
		r.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Rows returns the stored table of runID in index order.
func (s *Store) Rows(ctx context.Context, runID string) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, decisions, profit, revenue, cost, cycles, starved
		 FROM results WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.Index, &r.Decisions, &r.Profit, &r.Revenue, &r.Cost, &r.Cycles, &r.Starved); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return out, nil
}

// BestRow returns the stored best row of runID.
func (s *Store) BestRow(ctx context.Context, runID string) (Row, error) {
	var r Row
	err := s.db.QueryRowContext(ctx,
		`SELECT r.idx, r.decisions, r.profit, r.revenue, r.cost, r.cycles, r.starved
		 FROM results r JOIN runs u ON u.run_id = r.run_id AND u.best_index = r.idx
		 WHERE r.run_id = ?`, runID,
	).Scan(&r.Index, &r.Decisions, &r.Profit, &r.Revenue, &r.Cost, &r.Cycles, &r.Starved)
	if errors.Is(err, sql.ErrNoRows) {
		return Row{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return Row{}, fmt.Errorf("query best: %w", err)
	}
	return r, nil
}
