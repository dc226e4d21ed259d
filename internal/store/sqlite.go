package store

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/rndsolutions/HawkCD/internal/codec"
	"github.com/rndsolutions/HawkCD/internal/domain"
)

// Config holds the parameters for opening a SQLite database.
type Config struct {
	// Path is the database file. The parent directory must exist. Use a
	// file in t.TempDir() for tests; ":memory:" needs PoolSize 1 because
	// every in-memory connection is a separate database.
	Path string

	// PoolSize defaults to max(runtime.NumCPU(), 4).
	PoolSize int

	Logger *slog.Logger
}

// DB is a pooled SQLite database shared by every SQLite repository.
type DB struct {
	pool   *sqlitex.Pool
	logger *slog.Logger
	path   string
}

// Open creates the connection pool. Connections are prepared lazily on
// first Take.
func Open(cfg Config) (*DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store: Path is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = runtime.NumCPU()
		if poolSize < 4 {
			poolSize = 4
		}
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", cfg.Path, err)
	}

	logger.Info("sqlite store opened", "path", cfg.Path, "pool_size", poolSize)
	return &DB{pool: pool, logger: logger, path: cfg.Path}, nil
}

// Close closes every connection. It blocks until borrowed connections are
// returned.
func (db *DB) Close() error {
	if err := db.pool.Close(); err != nil {
		db.logger.Error("sqlite store close error", "path", db.path, "error", err)
		return fmt.Errorf("store: closing %s: %w", db.path, err)
	}
	db.logger.Info("sqlite store closed", "path", db.path)
	return nil
}

func prepareConnection(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("store: %s: %w", pragma, err)
		}
	}
	return nil
}

// SQLite is a Repository backed by one table of CBOR-encoded rows. Rows
// keep an insertion sequence so GetAll returns storage order.
type SQLite[T domain.Entity] struct {
	db     *DB
	table  string
	entity string
}

var _ domain.Repository[domain.Agent] = (*SQLite[domain.Agent])(nil)

// NewSQLite creates the backing table if needed. table must be a trusted
// identifier; it is interpolated into SQL.
func NewSQLite[T domain.Entity](ctx context.Context, db *DB, table, entity string) (*SQLite[T], error) {
	conn, err := db.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: take: %w", err)
	}
	defer db.pool.Put(conn)

	schema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id   TEXT PRIMARY KEY,
		seq  INTEGER NOT NULL,
		body BLOB NOT NULL
	)`, table)
	if err := sqlitex.ExecuteTransient(conn, schema, nil); err != nil {
		return nil, fmt.Errorf("store: creating table %s: %w", table, err)
	}
	return &SQLite[T]{db: db, table: table, entity: entity}, nil
}

func (s *SQLite[T]) GetByID(ctx context.Context, id string) (T, error) {
	var zero T
	conn, err := s.take(ctx)
	if err != nil {
		return zero, err
	}
	defer s.db.pool.Put(conn)

	var body []byte
	found := false
	err = sqlitex.Execute(conn, fmt.Sprintf("SELECT body FROM %s WHERE id = ?", s.table), &sqlitex.ExecOptions{
		Args: []any{id},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			body = readBlob(stmt, 0)
			found = true
			return nil
		},
	})
	if err != nil {
		return zero, domain.Transient("reading "+s.entity, err)
	}
	if !found {
		return zero, domain.NotFound(s.entity, id)
	}
	return s.decode(body)
}

func (s *SQLite[T]) GetAll(ctx context.Context) ([]T, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.db.pool.Put(conn)

	var result []T
	err = sqlitex.Execute(conn, fmt.Sprintf("SELECT body FROM %s ORDER BY seq", s.table), &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			v, decodeErr := s.decode(readBlob(stmt, 0))
			if decodeErr != nil {
				return decodeErr
			}
			result = append(result, v)
			return nil
		},
	})
	if err != nil {
		return nil, domain.Transient("listing "+s.entity, err)
	}
	return result, nil
}

func (s *SQLite[T]) Add(ctx context.Context, entity T) (_ T, err error) {
	var zero T
	id := entity.Key()
	if id == "" {
		return zero, domain.InvalidState("%s has no id", s.entity)
	}
	body, err := codec.Marshal(entity)
	if err != nil {
		return zero, domain.Transient("encoding "+s.entity, err)
	}

	conn, err := s.take(ctx)
	if err != nil {
		return zero, err
	}
	defer s.db.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return zero, domain.Transient("begin transaction", err)
	}
	defer endTransaction(&err)

	exists := false
	err = sqlitex.Execute(conn, fmt.Sprintf("SELECT 1 FROM %s WHERE id = ?", s.table), &sqlitex.ExecOptions{
		Args: []any{id},
		ResultFunc: func(*sqlite.Stmt) error {
			exists = true
			return nil
		},
	})
	if err != nil {
		return zero, domain.Transient("reading "+s.entity, err)
	}
	if exists {
		return zero, domain.AlreadyExists(s.entity, id)
	}

	insert := fmt.Sprintf("INSERT INTO %[1]s (id, seq, body) VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM %[1]s), ?)", s.table)
	if err = sqlitex.Execute(conn, insert, &sqlitex.ExecOptions{Args: []any{id, body}}); err != nil {
		return zero, domain.Transient("inserting "+s.entity, err)
	}
	return entity, nil
}

func (s *SQLite[T]) Update(ctx context.Context, entity T) (T, error) {
	var zero T
	id := entity.Key()
	body, err := codec.Marshal(entity)
	if err != nil {
		return zero, domain.Transient("encoding "+s.entity, err)
	}

	conn, err := s.take(ctx)
	if err != nil {
		return zero, err
	}
	defer s.db.pool.Put(conn)

	err = sqlitex.Execute(conn, fmt.Sprintf("UPDATE %s SET body = ? WHERE id = ?", s.table), &sqlitex.ExecOptions{
		Args: []any{body, id},
	})
	if err != nil {
		return zero, domain.Transient("updating "+s.entity, err)
	}
	if conn.Changes() == 0 {
		return zero, domain.NotFound(s.entity, id)
	}
	return entity, nil
}

func (s *SQLite[T]) Delete(ctx context.Context, id string) error {
	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.db.pool.Put(conn)

	err = sqlitex.Execute(conn, fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.table), &sqlitex.ExecOptions{
		Args: []any{id},
	})
	if err != nil {
		return domain.Transient("deleting "+s.entity, err)
	}
	if conn.Changes() == 0 {
		return domain.NotFound(s.entity, id)
	}
	return nil
}

func (s *SQLite[T]) take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := s.db.pool.Take(ctx)
	if err != nil {
		return nil, domain.Transient("store: take connection", err)
	}
	return conn, nil
}

func (s *SQLite[T]) decode(body []byte) (T, error) {
	var v T
	if err := codec.Unmarshal(body, &v); err != nil {
		return v, domain.Transient("decoding "+s.entity, err)
	}
	return v, nil
}

func readBlob(stmt *sqlite.Stmt, column int) []byte {
	buf := make([]byte, stmt.ColumnLen(column))
	stmt.ColumnBytes(column, buf)
	return buf
}
