package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/seqimprove/seqimprove-go/pkg/models"
)

// DefaultListLimit caps ListRuns when no limit is given
const DefaultListLimit = 50

// SQLiteStore keeps run history in a SQLite database
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath. ":memory:"
// gives a private in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// writes are serialized by SQLite anyway
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)
	if dbPath == ":memory:" {
		// each connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// retryOnBusy retries an operation that failed with SQLITE_BUSY, on top
// of the busy_timeout pragma
func (s *SQLiteStore) retryOnBusy(operation func() error, maxRetries int) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "SQLITE_BUSY") {
			return err
		}
		// 10ms, 20ms, 40ms, ...
		time.Sleep(time.Duration(10*(1<<uint(i))) * time.Millisecond)
	}
	return fmt.Errorf("operation failed after %d retries: %w", maxRetries, err)
}

func (s *SQLiteStore) initSchema() error {
	// times are stored as unix nanoseconds so they order numerically
	schema := `
	CREATE TABLE IF NOT EXISTS annotation_runs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		completed_at INTEGER,
		data TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_annotation_runs_started_at ON annotation_runs(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateRun inserts a new run
func (s *SQLiteStore) CreateRun(ctx context.Context, run *models.AnnotationRun) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	query := `INSERT INTO annotation_runs (id, status, started_at, completed_at, data) VALUES (?, ?, ?, ?, ?)`
	err = s.retryOnBusy(func() error {
		_, execErr := s.db.ExecContext(ctx, query, run.ID, string(run.Status), run.StartedAt.UnixNano(), completedAt(run), string(data))
		return execErr
	}, 5)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// UpdateRun overwrites an existing run
func (s *SQLiteStore) UpdateRun(ctx context.Context, run *models.AnnotationRun) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	query := `UPDATE annotation_runs SET status = ?, completed_at = ?, data = ? WHERE id = ?`
	var affected int64
	err = s.retryOnBusy(func() error {
		res, execErr := s.db.ExecContext(ctx, query, string(run.Status), completedAt(run), string(data), run.ID)
		if execErr != nil {
			return execErr
		}
		affected, execErr = res.RowsAffected()
		return execErr
	}, 5)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, run.ID)
	}
	return nil
}

// GetRun retrieves a run by ID
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*models.AnnotationRun, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM annotation_runs WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var run models.AnnotationRun
	if err := json.Unmarshal([]byte(data), &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &run, nil
}

// ListRuns lists runs, newest first
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*models.AnnotationRun, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, `SELECT data FROM annotation_runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]*models.AnnotationRun, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			continue
		}
		var run models.AnnotationRun
		if err := json.Unmarshal([]byte(data), &run); err != nil {
			continue
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// PruneBefore deletes finished runs that started before cutoff
func (s *SQLiteStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM annotation_runs WHERE started_at < ? AND status != ?`
	var deleted int64
	err := s.retryOnBusy(func() error {
		res, execErr := s.db.ExecContext(ctx, query, cutoff.UnixNano(), string(models.RunStatusRunning))
		if execErr != nil {
			return execErr
		}
		deleted, execErr = res.RowsAffected()
		return execErr
	}, 5)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return deleted, nil
}

func completedAt(run *models.AnnotationRun) interface{} {
	if run.CompletedAt == nil {
		return nil
	}
	return run.CompletedAt.UnixNano()
}
