package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a path is not registered.
var ErrNotFound = errors.New("path not found")

// PathInfo is the registration record of a valid store path.
type PathInfo struct {
	Path       Path
	Deriver    *Path
	NarSize    int64
	References []string
	// RegisteredAt is set by the store on insert.
	RegisteredAt time.Time
}

// SQLiteStore is a store whose registry of valid paths lives in SQLite.
type SQLiteStore struct {
	Dir
	db   *sql.DB
	path string
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	StoreDir        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance. Call Init and Migrate
// before use.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	storeDir := NewLocalStore(cfg.StoreDir).Dir
	return &SQLiteStore{
		Dir:  storeDir,
		path: cfg.Path,
	}, nil
}

// Init opens the database connection.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := s.path
	if s.path != ":memory:" {
		dsn = fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", s.path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// every connection to :memory: is a distinct database
	if s.path == ":memory:" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(8)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlitemigrate.WithInstance(s.db, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// AddPath registers info as a valid path. Registering the same path twice
// keeps the first record.
func (s *SQLiteStore) AddPath(ctx context.Context, info *PathInfo) error {
	if err := ValidateName(info.Path.Name); err != nil {
		return err
	}

	query := `
		INSERT INTO valid_paths (path, hash, name, deriver, nar_size, registered_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO NOTHING
	`

	var deriver *string
	if info.Deriver != nil {
		d := s.PrintStorePath(*info.Deriver)
		deriver = &d
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	printed := s.PrintStorePath(info.Path)
	if _, err := tx.ExecContext(ctx, query, printed, info.Path.Hash, info.Path.Name, deriver, info.NarSize, now); err != nil {
		return fmt.Errorf("failed to add path %s: %w", printed, err)
	}

	for _, ref := range info.References {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO refs (referrer, reference) VALUES (?, ?) ON CONFLICT DO NOTHING`,
			printed, ref,
		); err != nil {
			return fmt.Errorf("failed to add reference %s -> %s: %w", printed, ref, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit path %s: %w", printed, err)
	}

	info.RegisteredAt = now
	return nil
}

// QueryPathInfo returns the registration of p.
func (s *SQLiteStore) QueryPathInfo(ctx context.Context, p Path) (*PathInfo, error) {
	printed := s.PrintStorePath(p)

	var (
		deriver      sql.NullString
		narSize      int64
		registeredAt time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT deriver, nar_size, registered_at FROM valid_paths WHERE path = ?`,
		printed,
	).Scan(&deriver, &narSize, &registeredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, printed)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query path %s: %w", printed, err)
	}

	info := &PathInfo{Path: p, NarSize: narSize, RegisteredAt: registeredAt}
	if deriver.Valid {
		d, err := s.ParseStorePath(deriver.String)
		if err != nil {
			return nil, fmt.Errorf("corrupt deriver for %s: %w", printed, err)
		}
		info.Deriver = &d
	}

	refs, err := s.queryReferences(ctx, printed)
	if err != nil {
		return nil, err
	}
	info.References = refs
	return info, nil
}

func (s *SQLiteStore) queryReferences(ctx context.Context, printed string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT reference FROM refs WHERE referrer = ? ORDER BY reference`,
		printed,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query references of %s: %w", printed, err)
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, fmt.Errorf("failed to scan reference: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating references: %w", err)
	}
	return refs, nil
}

// IsValidPath reports whether p has been registered.
func (s *SQLiteStore) IsValidPath(ctx context.Context, p Path) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM valid_paths WHERE path = ?`,
		s.PrintStorePath(p),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check path: %w", err)
	}
	return n > 0, nil
}

// ListPaths lists registered paths ordered by name, with pagination
func (s *SQLiteStore) ListPaths(ctx context.Context, limit, offset int) ([]*PathInfo, error) {
	query := `
		SELECT hash, name, deriver, nar_size, registered_at
		FROM valid_paths
		ORDER BY name, hash
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list paths: %w", err)
	}
	defer rows.Close()

	infos := []*PathInfo{}
	for rows.Next() {
		var (
			info    PathInfo
			deriver sql.NullString
		)
		if err := rows.Scan(&info.Path.Hash, &info.Path.Name, &deriver, &info.NarSize, &info.RegisteredAt); err != nil {
			return nil, fmt.Errorf("failed to scan path: %w", err)
		}
		if deriver.Valid {
			if d, err := s.ParseStorePath(deriver.String); err == nil {
				info.Deriver = &d
			}
		}
		infos = append(infos, &info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating paths: %w", err)
	}

	return infos, nil
}

// HealthCheck verifies the database connection
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}
