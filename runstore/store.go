// Package runstore keeps a SQLite index of completed gate runs so operators
// can answer "when did this dataset last pass, and why did it stop passing"
// without trawling run directories.
package runstore

import (
	"database/sql"
	"embed"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tablegate/tablegate/errors"
	"github.com/tablegate/tablegate/logger"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Run is one indexed gate run.
type Run struct {
	RunID         string
	Dataset       string
	Verdict       string
	FinalState    string
	FailureCode   string
	RecordCount   int
	BlockingCount int
	AdvisoryCount int
	ResultPath    string
	SourceCommit  string
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Store wraps the run-history database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the run store at path and applies pending
// migrations. WAL mode keeps reads cheap while a finishing run writes.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "creating store directory %s", dir)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening run store %s", path)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "applying %s", pragma)
		}
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	logger.Debugw("run store opened", logger.FieldPath, path)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection. Used by tests; Open is the normal
// entry point.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies pending migrations in filename order. Migration 000
// creates the schema_migrations table and records itself through the same
// path as every later migration.
func migrate(db *sql.DB) error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return errors.Wrap(err, "reading migrations")
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, filename := range files {
		version := strings.Split(filename, "_")[0]

		var exists bool
		err := db.QueryRow("SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)", version).Scan(&exists)
		if err != nil {
			if version != "000" {
				return errors.Newf("schema_migrations table missing, but migration is not 000: %s", filename)
			}
		} else if exists {
			continue
		}

		sqlBytes, err := migrations.ReadFile(filepath.Join("migrations", filename))
		if err != nil {
			return errors.Wrapf(err, "reading %s", filename)
		}

		tx, err := db.Begin()
		if err != nil {
			return errors.Wrapf(err, "beginning tx for %s", filename)
		}
		if _, err := tx.Exec(string(sqlBytes)); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "executing %s", filename)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "recording %s", filename)
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrapf(err, "committing %s", filename)
		}
		logger.Debugw("applied migration", logger.FieldFile, filename)
	}
	return nil
}

// Record inserts a finished run. Re-recording the same run id replaces the
// previous row.
func (s *Store) Record(run Run) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO runs (
			run_id, dataset, verdict, final_state, failure_code,
			record_count, blocking_count, advisory_count,
			result_path, source_commit, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Dataset, run.Verdict, run.FinalState, nullable(run.FailureCode),
		run.RecordCount, run.BlockingCount, run.AdvisoryCount,
		run.ResultPath, nullable(run.SourceCommit), run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	if err != nil {
		return errors.Wrapf(err, "recording run %s", run.RunID)
	}
	return nil
}

// Get returns one run by id.
func (s *Store) Get(runID string) (*Run, error) {
	row := s.db.QueryRow(selectColumns+" FROM runs WHERE run_id = ?", runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(errors.ErrNotFound, "run %s", runID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "loading run %s", runID)
	}
	return run, nil
}

// List returns runs newest-first. Empty dataset lists every dataset; limit 0
// means no limit.
func (s *Store) List(dataset string, limit int) ([]Run, error) {
	query := selectColumns + " FROM runs"
	var args []interface{}
	if dataset != "" {
		query += " WHERE dataset = ?"
		args = append(args, dataset)
	}
	query += " ORDER BY started_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "listing runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning run")
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

const selectColumns = `SELECT run_id, dataset, verdict, final_state, failure_code,
	record_count, blocking_count, advisory_count,
	result_path, source_commit, started_at, finished_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	var run Run
	var failureCode, sourceCommit sql.NullString
	err := row.Scan(
		&run.RunID, &run.Dataset, &run.Verdict, &run.FinalState, &failureCode,
		&run.RecordCount, &run.BlockingCount, &run.AdvisoryCount,
		&run.ResultPath, &sourceCommit, &run.StartedAt, &run.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	run.FailureCode = failureCode.String
	run.SourceCommit = sourceCommit.String
	return &run, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
