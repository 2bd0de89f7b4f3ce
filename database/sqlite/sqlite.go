// Package sqlite is a reference ScriptDriver for SQLite, backed by the
// pure-Go modernc.org/sqlite driver so the module stays fully cgo-free.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	nurl "net/url"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/atomic"
	_ "modernc.org/sqlite"

	"github.com/schemarun/schemarun/database"
	"github.com/schemarun/schemarun/database/multistmt"
)

func init() {
	database.Register("sqlite", &Sqlite{})
	database.Register("sqlite3", &Sqlite{})
}

const DefaultMigrationsTable = "schema_migrations"

var (
	ErrNilConfig      = fmt.Errorf("sqlite: no config")
	ErrNoDatabaseName = fmt.Errorf("sqlite: no database name")
)

// Config configures a Sqlite driver instance.
type Config struct {
	MigrationsTable    string
	DatabaseName       string
	NoTxWrap           bool
	MultiStatement     bool
	MaxStatementSize   int
	StatementDelimiter string
}

// Sqlite is the reference ScriptDriver for SQLite databases. Locking is a
// process-local CAS flag rather than a database-level lock: SQLite has no
// advisory lock primitive, and a single file is typically only ever
// targeted by one runner at a time.
type Sqlite struct {
	db       *sql.DB
	isLocked atomic.Bool

	config *Config
}

func WithInstance(ctx context.Context, instance *sql.DB, config *Config) (database.Driver, error) {
	if config == nil {
		return nil, ErrNilConfig
	}

	if err := instance.PingContext(ctx); err != nil {
		return nil, err
	}

	if config.MigrationsTable == "" {
		config.MigrationsTable = DefaultMigrationsTable
	}
	if config.StatementDelimiter == "" {
		config.StatementDelimiter = ";"
	}

	mx := &Sqlite{db: instance, config: config}
	if err := mx.ensureVersionTable(ctx); err != nil {
		return nil, err
	}
	return mx, nil
}

// ensureVersionTable locks the database itself, which deviates from the
// usual "caller locks" convention elsewhere in this driver.
func (m *Sqlite) ensureVersionTable(ctx context.Context) (err error) {
	if err = m.Lock(ctx); err != nil {
		return err
	}
	defer func() {
		if e := m.Unlock(ctx); e != nil {
			err = multierror.Append(err, e)
		}
	}()

	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s (version uint64, dirty bool);
	CREATE UNIQUE INDEX IF NOT EXISTS version_unique ON %[1]s (version);
	`, quoteIdent(m.config.MigrationsTable))

	if _, err := m.db.ExecContext(ctx, query); err != nil {
		return &database.Error{OrigErr: err, Query: []byte(query)}
	}
	return nil
}

func (m *Sqlite) Open(ctx context.Context, url string) (database.Driver, error) {
	purl, err := nurl.Parse(url)
	if err != nil {
		return nil, err
	}
	dbfile := strings.Replace(url, purl.Scheme+"://", "", 1)
	db, err := sql.Open("sqlite", dbfile)
	if err != nil {
		return nil, err
	}

	qv := purl.Query()

	migrationsTable := qv.Get("x-migrations-table")
	if migrationsTable == "" {
		migrationsTable = DefaultMigrationsTable
	}

	noTxWrap := false
	if v := qv.Get("x-no-tx-wrap"); v != "" {
		noTxWrap, err = strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("x-no-tx-wrap: %w", err)
		}
	}

	return WithInstance(ctx, db, &Config{
		DatabaseName:       purl.Path,
		MigrationsTable:    migrationsTable,
		NoTxWrap:           noTxWrap,
		MultiStatement:     qv.Get("x-multi-statement") == "true",
		StatementDelimiter: qv.Get("x-statement-delimiter"),
	})
}

func (m *Sqlite) Close(ctx context.Context) error {
	return m.db.Close()
}

func (m *Sqlite) Drop(ctx context.Context) (err error) {
	query := `SELECT name FROM sqlite_master WHERE type = 'table';`
	tables, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return &database.Error{OrigErr: err, Query: []byte(query)}
	}
	defer func() {
		if errClose := tables.Close(); errClose != nil {
			err = multierror.Append(err, errClose)
		}
	}()

	var tableNames []string
	for tables.Next() {
		var tableName string
		if err := tables.Scan(&tableName); err != nil {
			return err
		}
		if tableName != "" && !strings.HasPrefix(tableName, "sqlite_") {
			tableNames = append(tableNames, tableName)
		}
	}
	if err := tables.Err(); err != nil {
		return &database.Error{OrigErr: err, Query: []byte(query)}
	}

	for _, t := range tableNames {
		dropQuery := "DROP TABLE " + quoteIdent(t)
		if _, err := m.db.ExecContext(ctx, dropQuery); err != nil {
			return &database.Error{OrigErr: err, Query: []byte(dropQuery)}
		}
	}

	if len(tableNames) > 0 {
		if _, err := m.db.ExecContext(ctx, "VACUUM"); err != nil {
			return &database.Error{OrigErr: err, Query: []byte("VACUUM")}
		}
		return m.ensureVersionTable(ctx)
	}
	return nil
}

func (m *Sqlite) Lock(ctx context.Context) error {
	if !m.isLocked.CAS(false, true) {
		return database.ErrLocked
	}
	return nil
}

func (m *Sqlite) Unlock(ctx context.Context) error {
	m.isLocked.Store(false)
	return nil
}

// ExecuteScript runs body against the database, inside a transaction unless
// the driver was opened with x-no-tx-wrap=true.
func (m *Sqlite) ExecuteScript(ctx context.Context, r io.Reader) error {
	body, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(body)) == "" {
		return nil
	}

	run := func(exec func(query string) error) error {
		if !m.config.MultiStatement {
			return exec(string(body))
		}
		return multistmt.Parse(strings.NewReader(string(body)), []byte(m.config.StatementDelimiter), m.config.MaxStatementSize, func(stmt []byte) error {
			return exec(string(stmt))
		})
	}

	if m.config.NoTxWrap {
		return run(func(query string) error {
			if _, err := m.db.ExecContext(ctx, query); err != nil {
				return &database.Error{OrigErr: err, Err: "migration failed", Query: []byte(query)}
			}
			return nil
		})
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return &database.Error{OrigErr: err, Err: "transaction start failed"}
	}
	if err := run(func(query string) error {
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return &database.Error{OrigErr: err, Err: "migration failed", Query: []byte(query)}
		}
		return nil
	}); err != nil {
		if errRollback := tx.Rollback(); errRollback != nil {
			return multierror.Append(err, errRollback)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return &database.Error{OrigErr: err, Err: "transaction commit failed"}
	}
	return nil
}

func (m *Sqlite) SetVersion(ctx context.Context, version int64, dirty bool) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return &database.Error{OrigErr: err, Err: "transaction start failed"}
	}

	query := "DELETE FROM " + quoteIdent(m.config.MigrationsTable)
	if _, err := tx.ExecContext(ctx, query); err != nil {
		_ = tx.Rollback()
		return &database.Error{OrigErr: err, Query: []byte(query)}
	}

	if version != database.NilVersion || dirty {
		v := version
		if v == database.NilVersion {
			v = -1
		}
		query = fmt.Sprintf(`INSERT INTO %s (version, dirty) VALUES (?, ?)`, quoteIdent(m.config.MigrationsTable))
		if _, err := tx.ExecContext(ctx, query, v, dirty); err != nil {
			if errRollback := tx.Rollback(); errRollback != nil {
				return multierror.Append(err, errRollback)
			}
			return &database.Error{OrigErr: err, Query: []byte(query)}
		}
	}

	if err := tx.Commit(); err != nil {
		return &database.Error{OrigErr: err, Err: "transaction commit failed"}
	}
	return nil
}

func (m *Sqlite) Version(ctx context.Context) (version int64, dirty bool, err error) {
	query := "SELECT version, dirty FROM " + quoteIdent(m.config.MigrationsTable) + " LIMIT 1"
	err = m.db.QueryRowContext(ctx, query).Scan(&version, &dirty)
	if err != nil {
		return database.NilVersion, false, nil
	}
	return version, dirty, nil
}

// quoteIdent quotes a SQL identifier the way SQLite expects, doubling any
// embedded double quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
