package scripttable

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/golang/groupcache/lru"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"scriptvm/errors"
	"scriptvm/protocol/vm"
)

// ErrBadDriver is returned by Open for an unsupported driver name.
var ErrBadDriver = errors.New("unsupported database driver")

// Supported driver names.
const (
	Postgres = "postgres"
	SQLite   = "sqlite"
)

const cacheSize = 256

// SQL is a vm.ScriptTable stored in a postgres or sqlite database,
// with an LRU cache of recently loaded scripts in front.
type SQL struct {
	db     *sql.DB
	driver string

	mu    sync.Mutex
	cache *lru.Cache
}

// Open connects to the database named by dsn. An sqlite database
// is limited to a single connection, so that ":memory:" names one
// database.
func Open(ctx context.Context, driver, dsn string) (*SQL, error) {
	if driver != Postgres && driver != SQLite {
		return nil, errors.WithDetailf(ErrBadDriver, "driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if driver == SQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "connecting to database")
	}
	return New(db, driver), nil
}

// New wraps an open database.
func New(db *sql.DB, driver string) *SQL {
	return &SQL{db: db, driver: driver, cache: lru.New(cacheSize)}
}

func (s *SQL) Close() error {
	return s.db.Close()
}

// query rewrites postgres-style $N placeholders for sqlite.
func (s *SQL) query(q string) string {
	if s.driver == SQLite {
		return strings.Replace(q, "$", "?", -1)
	}
	return q
}

// Migrate creates the scripts table if it does not exist.
func (s *SQL) Migrate(ctx context.Context) error {
	blob := "BYTEA"
	if s.driver == SQLite {
		blob = "BLOB"
	}
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS scripts (
		hash %[1]s PRIMARY KEY,
		script %[1]s NOT NULL,
		invocations BIGINT NOT NULL DEFAULT 0
	)`, blob)
	_, err := s.db.ExecContext(ctx, q)
	return errors.Wrap(err, "creating scripts table")
}

// Put stores script and returns its hash. Storing a script that
// is already present has no effect.
func (s *SQL) Put(ctx context.Context, script []byte) (vm.Hash160, error) {
	h := vm.NewScript(script).Hash()
	const q = `INSERT INTO scripts (hash, script) VALUES ($1, $2) ON CONFLICT (hash) DO NOTHING`
	_, err := s.db.ExecContext(ctx, s.query(q), h[:], script)
	if err != nil {
		return h, errors.Wrap(err, "inserting script")
	}
	return h, nil
}

// GetScript implements vm.ScriptTable.
func (s *SQL) GetScript(hash vm.Hash160) ([]byte, error) {
	s.mu.Lock()
	cached, ok := s.cache.Get(hash)
	s.mu.Unlock()
	if ok {
		return cached.([]byte), nil
	}

	const q = `SELECT script FROM scripts WHERE hash = $1`
	var script []byte
	err := s.db.QueryRowContext(context.Background(), s.query(q), hash[:]).Scan(&script)
	if err == sql.ErrNoRows {
		return nil, errors.WithDetailf(vm.ErrScriptNotFound, "script %s", hash)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "loading script %s", hash)
	}

	s.mu.Lock()
	s.cache.Add(hash, script)
	s.mu.Unlock()
	return script, nil
}

// IncrementInvocations records n more invocations of the script.
func (s *SQL) IncrementInvocations(ctx context.Context, hash vm.Hash160, n int) error {
	const q = `UPDATE scripts SET invocations = invocations + $1 WHERE hash = $2`
	res, err := s.db.ExecContext(ctx, s.query(q), n, hash[:])
	if err != nil {
		return errors.Wrap(err, "updating invocations")
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return errors.WithDetailf(vm.ErrScriptNotFound, "script %s", hash)
	}
	return nil
}

// Invocations returns the recorded invocation count of a script.
func (s *SQL) Invocations(ctx context.Context, hash vm.Hash160) (int64, error) {
	const q = `SELECT invocations FROM scripts WHERE hash = $1`
	var n int64
	err := s.db.QueryRowContext(ctx, s.query(q), hash[:]).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, errors.WithDetailf(vm.ErrScriptNotFound, "script %s", hash)
	}
	return n, errors.Wrap(err, "loading invocations")
}
