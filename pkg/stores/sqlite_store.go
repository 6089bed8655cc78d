package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/recman/recman/pkg/records"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore is an upsert backend over a records table in SQLite. Every
// add and update is written as an insert-or-update keyed by id and every
// delete as a row removal, so the table always mirrors the in-memory store.
type SQLiteStore struct {
	db          *sql.DB
	path        string
	busyTimeout time.Duration
}

// Config holds SQLite store configuration.
type Config struct {
	Path        string
	BusyTimeout time.Duration
}

var (
	_ records.Backend      = (*SQLiteStore)(nil)
	_ records.RecordSyncer = (*SQLiteStore)(nil)
	_ records.BulkSaver    = (*SQLiteStore)(nil)
)

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	return &SQLiteStore{
		path:        cfg.Path,
		busyTimeout: cfg.BusyTimeout,
	}, nil
}

// OpenSQLiteStore creates, initializes and migrates a store in one call.
func OpenSQLiteStore(ctx context.Context, cfg Config) (*SQLiteStore, error) {
	store, err := NewSQLiteStore(cfg)
	if err != nil {
		return nil, err
	}

	if err := store.Init(ctx); err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	return store, nil
}

// Init opens the database connection.
func (s *SQLiteStore) Init(ctx context.Context) error {
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection: the store has one owner, and an in-memory
	// database lives only as long as its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", s.busyTimeout.Milliseconds()),
		"PRAGMA synchronous = NORMAL",
	}
	if s.path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to set %q: %w", pragma, err)
		}
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// Migrate creates the records table.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Name returns the backend name.
func (s *SQLiteStore) Name() string {
	return "sqlite"
}

// Path returns the database path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Load reads every row in insertion order. Rows whose age cannot be coerced
// to an integer are skipped and reported in a format error.
func (s *SQLiteStore) Load(ctx context.Context) ([]records.Record, error) {
	if s.db == nil {
		return nil, records.NewUnknownError("database not initialized", nil)
	}

	query := `
		SELECT id, name, age, department, salary
		FROM records
		ORDER BY rowid
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, records.NewUnknownError("failed to list records", err)
	}
	defer rows.Close()

	recs := []records.Record{}
	var rowErrs []error
	row := 0
	for rows.Next() {
		row++
		var (
			rec        records.Record
			age        any
			department sql.NullString
			salary     sql.NullFloat64
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &age, &department, &salary); err != nil {
			return nil, records.NewUnknownError("failed to scan record", err)
		}

		rec.Age, err = coerceAge(age)
		if err != nil {
			rowErrs = append(rowErrs, withRow(err, rec.ID, row))
			continue
		}
		rec.Department = department.String
		if salary.Valid {
			v := salary.Float64
			rec.Salary = &v
		}
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, records.NewUnknownError("error iterating records", err)
	}

	if len(rowErrs) > 0 {
		return recs, records.NewFormatError(
			fmt.Sprintf("%d malformed rows skipped", len(rowErrs)),
			errors.Join(rowErrs...))
	}
	return recs, nil
}

// coerceAge converts a scanned age column to an int.
func coerceAge(v any) (int, error) {
	switch age := v.(type) {
	case int64:
		return int(age), nil
	case float64:
		if age == float64(int(age)) {
			return int(age), nil
		}
	case string:
		return records.ParseAge(age)
	case []byte:
		return records.ParseAge(string(age))
	case nil:
		return 0, nil
	}
	return 0, records.NewFormatError(fmt.Sprintf("invalid age %v", v), nil)
}

// Upsert inserts the record or replaces the row with the same id.
func (s *SQLiteStore) Upsert(ctx context.Context, r records.Record) error {
	if s.db == nil {
		return records.NewUnknownError("database not initialized", nil)
	}
	return s.upsert(ctx, s.db, r)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) upsert(ctx context.Context, db execer, r records.Record) error {
	query := `
		INSERT INTO records (id, name, age, department, salary)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			age = excluded.age,
			department = excluded.department,
			salary = excluded.salary
	`

	var department *string
	if r.Salary == nil || r.Department != "" {
		department = &r.Department
	}

	_, err := db.ExecContext(ctx, query,
		r.ID,
		r.Name,
		r.Age,
		department,
		r.Salary,
	)
	if err != nil {
		return records.NewUnknownError("failed to upsert record", err).WithRecord(r.ID)
	}

	return nil
}

// Remove deletes the row with the given id and returns the rows affected.
func (s *SQLiteStore) Remove(ctx context.Context, id string) (int64, error) {
	if s.db == nil {
		return 0, records.NewUnknownError("database not initialized", nil)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return 0, records.NewUnknownError("failed to delete record", err).WithRecord(id)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, records.NewUnknownError("failed to get rows affected", err)
	}

	return n, nil
}

// Save replaces the table contents with recs in a single transaction.
// Records sharing an id collapse into one row holding the last of them.
func (s *SQLiteStore) Save(ctx context.Context, recs []records.Record) error {
	if s.db == nil {
		return records.NewUnknownError("database not initialized", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return records.NewUnknownError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return records.NewUnknownError("failed to clear records", err)
	}

	for _, r := range recs {
		if err := s.upsert(ctx, tx, r); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return records.NewUnknownError("failed to commit records", err)
	}
	return nil
}

// Count returns the number of rows in the records table.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
