// Package postgres is a reference ScriptDriver for PostgreSQL. It keeps a
// single long-lived connection, serialized by the standard library's
// *sql.Conn, so a session-scoped advisory lock stays valid across every
// operation of a run.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	nurl "net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"github.com/schemarun/schemarun/database"
	"github.com/schemarun/schemarun/database/multistmt"
)

func init() {
	db := &Postgres{}
	database.Register("postgres", db)
	database.Register("postgresql", db)
}

// DefaultMigrationsTable is used when no x-migrations-table query param is
// given.
const DefaultMigrationsTable = "schema_migrations"

var (
	ErrNilConfig      = fmt.Errorf("postgres: no config")
	ErrNoDatabaseName = fmt.Errorf("postgres: no database name")
)

// Config configures a Postgres driver instance.
type Config struct {
	DatabaseName    string
	MigrationsTable string
	MigrationsSchema string
	NoTxWrap        bool
	MultiStatement  bool
	MaxStatementSize int
	StatementDelimiter string
}

// Postgres is the reference ScriptDriver for PostgreSQL, backed by
// pgx/v5's database/sql driver.
type Postgres struct {
	conn     *sql.Conn
	db       *sql.DB
	isLocked bool

	config *Config
}

// WithInstance adapts an already-open *sql.DB into a Driver.
func WithInstance(ctx context.Context, instance *sql.DB, config *Config) (database.Driver, error) {
	if config == nil {
		return nil, ErrNilConfig
	}

	if err := instance.PingContext(ctx); err != nil {
		return nil, err
	}

	if config.DatabaseName == "" {
		query := `SELECT CURRENT_DATABASE()`
		if err := instance.QueryRowContext(ctx, query).Scan(&config.DatabaseName); err != nil {
			return nil, &database.Error{OrigErr: err, Query: []byte(query)}
		}
	}
	if config.DatabaseName == "" {
		return nil, ErrNoDatabaseName
	}
	if config.MigrationsTable == "" {
		config.MigrationsTable = DefaultMigrationsTable
	}

	conn, err := instance.Conn(ctx)
	if err != nil {
		return nil, err
	}

	p := &Postgres{conn: conn, db: instance, config: config}
	if err := p.ensureVersionTable(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Postgres) Open(ctx context.Context, url string) (database.Driver, error) {
	purl, err := nurl.Parse(url)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, err
	}

	config := &Config{
		MigrationsTable:    purl.Query().Get("x-migrations-table"),
		MigrationsSchema:   purl.Query().Get("x-migrations-schema"),
		NoTxWrap:           purl.Query().Get("x-no-tx-wrap") == "true",
		MultiStatement:     purl.Query().Get("x-multi-statement") == "true",
		StatementDelimiter: purl.Query().Get("x-statement-delimiter"),
	}
	if config.StatementDelimiter == "" {
		config.StatementDelimiter = ";"
	}

	return WithInstance(ctx, db, config)
}

func (p *Postgres) Close(ctx context.Context) error {
	connErr := p.conn.Close()
	var dbErr error
	if p.db != nil {
		dbErr = p.db.Close()
	}
	if connErr != nil {
		return connErr
	}
	return dbErr
}

// Lock acquires a session-scoped advisory lock keyed on the migrations
// schema, the migrations table and the database name, so independent
// runners targeting the same table contend on the same key. It waits for
// the lock until ctx is done.
// https://www.postgresql.org/docs/current/explicit-locking.html#ADVISORY-LOCKS
func (p *Postgres) Lock(ctx context.Context) error {
	if p.isLocked {
		return database.ErrLocked
	}

	aid, err := p.lockKey()
	if err != nil {
		return err
	}

	query := `SELECT pg_advisory_lock($1)`
	if _, err := p.conn.ExecContext(ctx, query, aid); err != nil {
		return &database.Error{OrigErr: err, Err: "lock failed", Query: []byte(query)}
	}
	p.isLocked = true
	return nil
}

func (p *Postgres) Unlock(ctx context.Context) error {
	if !p.isLocked {
		return nil
	}

	aid, err := p.lockKey()
	if err != nil {
		return err
	}

	query := `SELECT pg_advisory_unlock($1)`
	if _, err := p.conn.ExecContext(ctx, query, aid); err != nil {
		return &database.Error{OrigErr: err, Query: []byte(query)}
	}
	p.isLocked = false
	return nil
}

func (p *Postgres) lockKey() (int64, error) {
	return database.GenerateAdvisoryLockID(p.config.DatabaseName, p.config.MigrationsSchema, p.config.MigrationsTable)
}

// ExecuteScript runs body against the connection, inside a transaction
// unless the driver was opened with x-no-tx-wrap=true. In multi-statement
// mode each statement is split and executed independently so a failure
// reports the offending statement.
func (p *Postgres) ExecuteScript(ctx context.Context, r io.Reader) error {
	body, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}

	exec := func(run func(query string) error) error {
		if !p.config.MultiStatement {
			return run(string(body))
		}
		return multistmt.PGParse(strings.NewReader(string(body)), []byte(p.config.StatementDelimiter), p.config.MaxStatementSize, func(stmt []byte) error {
			return run(string(stmt))
		})
	}

	if p.config.NoTxWrap {
		return exec(func(query string) error {
			if _, err := p.conn.ExecContext(ctx, query); err != nil {
				return p.queryError(query, err)
			}
			return nil
		})
	}

	tx, err := p.conn.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return &database.Error{OrigErr: err, Err: "transaction start failed"}
	}
	if err := exec(func(query string) error {
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return p.queryError(query, err)
		}
		return nil
	}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return &database.Error{OrigErr: err, Err: "transaction commit failed"}
	}
	return nil
}

func (p *Postgres) queryError(query string, err error) error {
	return database.Error{OrigErr: err, Err: "migration failed", Query: []byte(query)}
}

func (p *Postgres) SetVersion(ctx context.Context, version int64, dirty bool) error {
	tx, err := p.conn.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return &database.Error{OrigErr: err, Err: "transaction start failed"}
	}

	query := `DELETE FROM ` + p.quotedTable()
	if _, err := tx.ExecContext(ctx, query); err != nil {
		_ = tx.Rollback()
		return &database.Error{OrigErr: err, Query: []byte(query)}
	}

	if version != database.NilVersion || dirty {
		v := version
		if v == database.NilVersion {
			v = -1
		}
		query = `INSERT INTO ` + p.quotedTable() + ` (version, dirty) VALUES ($1, $2)`
		if _, err := tx.ExecContext(ctx, query, v, dirty); err != nil {
			_ = tx.Rollback()
			return &database.Error{OrigErr: err, Query: []byte(query)}
		}
	}

	if err := tx.Commit(); err != nil {
		return &database.Error{OrigErr: err, Err: "transaction commit failed"}
	}
	return nil
}

func (p *Postgres) Version(ctx context.Context) (version int64, dirty bool, err error) {
	query := `SELECT version, dirty FROM ` + p.quotedTable() + ` LIMIT 1`
	err = p.conn.QueryRowContext(ctx, query).Scan(&version, &dirty)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return database.NilVersion, false, nil
	case err != nil:
		if isUndefinedTable(err) {
			return database.NilVersion, false, nil
		}
		return 0, false, &database.Error{OrigErr: err, Query: []byte(query)}
	default:
		return version, dirty, nil
	}
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "42P01" // undefined_table
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Name() == "undefined_table"
	}
	return false
}

func (p *Postgres) Drop(ctx context.Context) error {
	schema := "(SELECT current_schema())"
	args := []any{}
	if p.config.MigrationsSchema != "" {
		schema = "$1"
		args = append(args, p.config.MigrationsSchema)
	}

	query := `SELECT table_name FROM information_schema.tables WHERE table_schema = ` + schema
	rows, err := p.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return &database.Error{OrigErr: err, Query: []byte(query)}
	}
	defer rows.Close()

	var tableNames []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		if name != "" {
			tableNames = append(tableNames, name)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, t := range tableNames {
		query = `DROP TABLE IF EXISTS ` + pq.QuoteIdentifier(t) + ` CASCADE`
		if _, err := p.conn.ExecContext(ctx, query); err != nil {
			return &database.Error{OrigErr: err, Query: []byte(query)}
		}
	}

	if len(tableNames) > 0 {
		return p.ensureVersionTable(ctx)
	}
	return nil
}

func (p *Postgres) quotedTable() string {
	if p.config.MigrationsSchema != "" {
		return pq.QuoteIdentifier(p.config.MigrationsSchema) + "." + pq.QuoteIdentifier(p.config.MigrationsTable)
	}
	return pq.QuoteIdentifier(p.config.MigrationsTable)
}

func (p *Postgres) ensureVersionTable(ctx context.Context) error {
	if p.config.MigrationsSchema != "" {
		query := `CREATE SCHEMA IF NOT EXISTS ` + pq.QuoteIdentifier(p.config.MigrationsSchema)
		if _, err := p.conn.ExecContext(ctx, query); err != nil {
			return &database.Error{OrigErr: err, Query: []byte(query)}
		}
	}

	query := `CREATE TABLE IF NOT EXISTS ` + p.quotedTable() + ` (version bigint not null primary key, dirty boolean not null)`
	if _, err := p.conn.ExecContext(ctx, query); err != nil {
		return &database.Error{OrigErr: err, Query: []byte(query)}
	}
	return nil
}
