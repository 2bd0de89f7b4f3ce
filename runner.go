// Package schemarun orchestrates applying and reverting a versioned
// catalog of migration scripts against a datastore, tracking a single
// durable (version, dirty) record of progress.
package schemarun

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/schemarun/schemarun/database"
	"github.com/schemarun/schemarun/source"
)

// DefaultLockTimeout bounds how long Lock waits on contention when no
// explicit WithLockTimeout option is given.
const DefaultLockTimeout = 15 * time.Second

// dirtyReassertTimeout bounds the uncancellable write that re-asserts the
// dirty flag after a canceled or failed step. It runs under a context
// derived from the caller's but stripped of the caller's cancellation, so
// it needs its own bound to avoid hanging forever against an unreachable
// datastore.
const dirtyReassertTimeout = 10 * time.Second

// Runner orchestrates migrations for one Source/Driver pair. A Runner is
// safe for concurrent use: mutating operations serialize through the
// underlying Driver lock, and Version may be called concurrently with
// anything.
type Runner struct {
	source source.Source
	driver database.Driver
	logger Logger

	lockTimeout time.Duration

	mu        sync.Mutex
	registry  *Registry
	loadGroup singleflight.Group
}

// Option configures a Runner at construction time.
type Option func(*Runner)

// WithLogger attaches a Logger. Nil (the default) disables logging.
func WithLogger(l Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithLockTimeout overrides DefaultLockTimeout. Zero disables the timeout,
// waiting on the driver lock indefinitely (bounded only by ctx).
func WithLockTimeout(d time.Duration) Option {
	return func(r *Runner) { r.lockTimeout = d }
}

// NewWithInstance builds a Runner from an already-constructed Source and
// Driver.
func NewWithInstance(src source.Source, driver database.Driver, opts ...Option) *Runner {
	r := &Runner{source: src, driver: driver, lockTimeout: DefaultLockTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewWithDatabaseInstance builds a Runner from an already-open Driver and a
// scheme-qualified source URL, e.g. "file:///var/migrations".
func NewWithDatabaseInstance(sourceURL string, driver database.Driver, opts ...Option) (*Runner, error) {
	src, err := source.Open(sourceURL)
	if err != nil {
		return nil, err
	}
	return NewWithInstance(src, driver, opts...), nil
}

// NewWithSourceInstance builds a Runner from an already-loaded Source and a
// scheme-qualified database URL.
func NewWithSourceInstance(ctx context.Context, src source.Source, databaseURL string, opts ...Option) (*Runner, error) {
	driver, err := database.Open(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return NewWithInstance(src, driver, opts...), nil
}

// New builds a Runner entirely from scheme-qualified URLs, dispatching
// through the source and database driver registries.
func New(ctx context.Context, sourceURL, databaseURL string, opts ...Option) (*Runner, error) {
	src, err := source.Open(sourceURL)
	if err != nil {
		return nil, err
	}
	driver, err := database.Open(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return NewWithInstance(src, driver, opts...), nil
}

// Close releases the underlying Driver's resources. The Runner must not be
// used afterward.
func (r *Runner) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

func (r *Runner) log(format string, v ...any) {
	if r.logger != nil {
		r.logger.Printf(format, v...)
	}
}

// registryFor returns the memoized Registry, loading it from Source on
// first use. Concurrent callers racing the first load share a single
// Source.Load call via singleflight.
func (r *Runner) registryFor(ctx context.Context) (*Registry, error) {
	r.mu.Lock()
	if r.registry != nil {
		reg := r.registry
		r.mu.Unlock()
		return reg, nil
	}
	r.mu.Unlock()

	v, err, _ := r.loadGroup.Do("registry", func() (interface{}, error) {
		scripts, err := r.source.Load()
		if err != nil {
			return nil, err
		}
		migrations, err := bindMigrations(scripts)
		if err != nil {
			return nil, err
		}
		reg, err := NewRegistry(migrations)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.registry = reg
		r.mu.Unlock()
		return reg, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Registry), nil
}

// withLock acquires the driver lock (bounded by lockTimeout, if set),
// invokes fn, and always unlocks in an uncancellable scope afterward so a
// canceled caller never leaks the lock.
func (r *Runner) withLock(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lockCtx := ctx
	if r.lockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, r.lockTimeout)
		defer cancel()
	}

	if err := r.driver.Lock(lockCtx); err != nil {
		if errors.Is(lockCtx.Err(), context.DeadlineExceeded) {
			return ErrLockTimeout
		}
		return err
	}
	defer func() {
		_ = r.driver.Unlock(context.WithoutCancel(ctx))
	}()

	return fn(ctx)
}

func versionPtr(v int64) *uint64 {
	if v == database.NilVersion {
		return nil
	}
	u := uint64(v)
	return &u
}

func versionOrZero(v int64) uint64 {
	if v == database.NilVersion {
		return 0
	}
	return uint64(v)
}

// Up applies every pending migration, in ascending version order. Returns
// ErrNoChange if the database is already fully migrated.
func (r *Runner) Up(ctx context.Context) error {
	return r.applyN(ctx, 0)
}

// UpN applies up to n pending migrations. Returns ErrShortLimit (after
// applying what was available) if at least one but fewer than n were
// pending, and ErrNoChange if none were. n must be > 0.
func (r *Runner) UpN(ctx context.Context, n uint64) error {
	if n == 0 {
		return ArgumentError{Arg: "n", Reason: "must be > 0"}
	}
	return r.applyN(ctx, n)
}

func (r *Runner) applyN(ctx context.Context, limit uint64) error {
	return r.withLock(ctx, func(ctx context.Context) error {
		reg, err := r.registryFor(ctx)
		if err != nil {
			return err
		}

		version, dirty, err := r.driver.Version(ctx)
		if err != nil {
			return err
		}
		if dirty {
			return DirtyStateError{Version: versionOrZero(version)}
		}

		pending := reg.NextAfter(versionPtr(version), int(limit))
		if len(pending) == 0 {
			return ErrNoChange
		}

		if err := r.applyMigrations(ctx, pending); err != nil {
			return err
		}

		if limit > 0 && uint64(len(pending)) < limit {
			return ErrShortLimit{Short: limit - uint64(len(pending))}
		}
		return nil
	})
}

// Down reverts exactly one migration: the one matching the current
// version. Returns ErrNoChange at baseline.
func (r *Runner) Down(ctx context.Context) error {
	return r.revertN(ctx, 1)
}

// DownN reverts up to n migrations in descending version order. n must be
// > 0.
func (r *Runner) DownN(ctx context.Context, n uint64) error {
	if n == 0 {
		return ArgumentError{Arg: "n", Reason: "must be > 0"}
	}
	return r.revertN(ctx, n)
}

// DownAll reverts every applied migration, returning the database to
// baseline.
func (r *Runner) DownAll(ctx context.Context) error {
	return r.revertN(ctx, 0)
}

func (r *Runner) revertN(ctx context.Context, limit uint64) error {
	return r.withLock(ctx, func(ctx context.Context) error {
		reg, err := r.registryFor(ctx)
		if err != nil {
			return err
		}

		version, dirty, err := r.driver.Version(ctx)
		if err != nil {
			return err
		}
		if dirty {
			return DirtyStateError{Version: versionOrZero(version)}
		}
		if version == database.NilVersion {
			return ErrNoChange
		}

		v := uint64(version)
		if _, ok := reg.Get(v); !ok {
			return MissingMigrationError{Version: v}
		}

		pending := reg.AtOrBelow(v, int(limit))
		if len(pending) == 0 {
			return ErrNoChange
		}

		if err := r.revertMigrations(ctx, reg, pending); err != nil {
			return err
		}

		if limit > 0 && uint64(len(pending)) < limit {
			return ErrShortLimit{Short: limit - uint64(len(pending))}
		}
		return nil
	})
}

// Steps applies n migrations if n > 0, reverts |n| if n < 0, or is a no-op
// if n == 0.
func (r *Runner) Steps(ctx context.Context, n int64) error {
	switch {
	case n > 0:
		return r.UpN(ctx, uint64(n))
	case n < 0:
		return r.DownN(ctx, uint64(-n))
	default:
		return nil
	}
}

// Goto moves the database to exactly version target, applying or reverting
// whatever registry entries lie between the current version and target.
// Missing intermediate versions do not get skipped — the step count
// reflects registry membership only. target == current is a no-op.
func (r *Runner) Goto(ctx context.Context, target uint64) error {
	return r.withLock(ctx, func(ctx context.Context) error {
		reg, err := r.registryFor(ctx)
		if err != nil {
			return err
		}

		version, dirty, err := r.driver.Version(ctx)
		if err != nil {
			return err
		}
		if dirty {
			return DirtyStateError{Version: versionOrZero(version)}
		}

		cur := versionPtr(version)
		if cur != nil && *cur == target {
			return ErrNoChange
		}

		if cur == nil || target > *cur {
			count := reg.CountBetween(cur, target)
			if count == 0 {
				return ErrNoChange
			}
			pending := reg.NextAfter(cur, count)
			return r.applyMigrations(ctx, pending)
		}

		if _, ok := reg.Get(*cur); !ok {
			return MissingMigrationError{Version: *cur}
		}
		count := reg.CountBetween(&target, *cur)
		if count == 0 {
			return ErrNoChange
		}
		pending := reg.AtOrBelow(*cur, count)
		return r.revertMigrations(ctx, reg, pending)
	})
}

// Force directly overwrites VersionState without running any script. v <=
// 0 resets to baseline; v > 0 sets that exact version. v < -1 is rejected.
// Force does not require a clean state — it is the operator escape hatch
// for clearing dirty.
func (r *Runner) Force(ctx context.Context, v int64) error {
	if v < -1 {
		return ArgumentError{Arg: "v", Reason: "must be >= -1"}
	}
	return r.withLock(ctx, func(ctx context.Context) error {
		if v <= 0 {
			return r.driver.SetVersion(ctx, database.NilVersion, false)
		}
		return r.driver.SetVersion(ctx, v, false)
	})
}

// Drop removes every object in the driver's working namespace and resets
// VersionState to baseline. If the database is dirty, force must be true,
// otherwise Drop fails with DirtyStateError.
func (r *Runner) Drop(ctx context.Context, force bool) error {
	return r.withLock(ctx, func(ctx context.Context) error {
		version, dirty, err := r.driver.Version(ctx)
		if err != nil {
			return err
		}
		if dirty && !force {
			return DirtyStateError{Version: versionOrZero(version)}
		}
		if dirty {
			if err := r.driver.SetVersion(ctx, version, false); err != nil {
				return err
			}
		}
		if err := r.driver.Drop(ctx); err != nil {
			return err
		}
		return r.driver.SetVersion(ctx, database.NilVersion, false)
	})
}

// Run applies an ad-hoc list of migrations, in the order given, through the
// same dirty-state protocol as Up/Down, without consulting the Registry.
// It is an escape hatch for callers embedding the Runner who need to inject
// a migration that isn't part of the catalog (e.g. a one-off backfill)
// gated the same way ordinary migrations are.
func (r *Runner) Run(ctx context.Context, migrations ...Migration) error {
	if len(migrations) == 0 {
		return ErrNoChange
	}
	return r.withLock(ctx, func(ctx context.Context) error {
		version, dirty, err := r.driver.Version(ctx)
		if err != nil {
			return err
		}
		if dirty {
			return DirtyStateError{Version: versionOrZero(version)}
		}
		return r.applyMigrations(ctx, migrations)
	})
}

// Version is a read-only query; it does not acquire the driver lock. A nil
// version means baseline.
func (r *Runner) Version(ctx context.Context) (version *uint64, dirty bool, err error) {
	v, dirty, err := r.driver.Version(ctx)
	if err != nil {
		return nil, false, err
	}
	return versionPtr(v), dirty, nil
}

func (r *Runner) applyMigrations(ctx context.Context, ms []Migration) error {
	for _, m := range ms {
		if err := r.applyOne(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) revertMigrations(ctx context.Context, reg *Registry, ms []Migration) error {
	for _, m := range ms {
		if err := r.revertOne(ctx, m, reg); err != nil {
			return err
		}
	}
	return nil
}

// applyOne implements the dirty-state contract for a single forward step:
// mark in-flight, run the action, then clear dirty at m.Version on
// success, or re-assert dirty and wrap the failure otherwise.
func (r *Runner) applyOne(ctx context.Context, m Migration) error {
	r.log("applying migration %d (%s)", m.Version, m.Description)

	if err := r.driver.SetVersion(context.WithoutCancel(ctx), int64(m.Version), true); err != nil {
		return err
	}

	if err := m.Apply(ctx, r.driver); err != nil {
		r.reassertDirty(ctx, int64(m.Version))
		if cancelErr := ctx.Err(); cancelErr != nil {
			return cancelErr
		}
		return MigrationFailedError{Version: m.Version, Description: m.Description, Cause: err}
	}

	return r.driver.SetVersion(context.WithoutCancel(ctx), int64(m.Version), false)
}

// revertOne is the mirror of applyOne: on success the recorded version
// becomes the registry-predecessor of m.Version, correctly yielding
// baseline when reverting the first migration.
func (r *Runner) revertOne(ctx context.Context, m Migration, reg *Registry) error {
	r.log("reverting migration %d (%s)", m.Version, m.Description)

	if err := r.driver.SetVersion(context.WithoutCancel(ctx), int64(m.Version), true); err != nil {
		return err
	}

	if err := m.Revert(ctx, r.driver); err != nil {
		r.reassertDirty(ctx, int64(m.Version))
		if cancelErr := ctx.Err(); cancelErr != nil {
			return cancelErr
		}
		return MigrationFailedError{Version: m.Version, Description: m.Description, Cause: err}
	}

	newVersion := int64(database.NilVersion)
	if prev, ok := reg.PreviousOf(m.Version); ok {
		newVersion = int64(prev.Version)
	}
	return r.driver.SetVersion(context.WithoutCancel(ctx), newVersion, false)
}

// reassertDirty re-writes (version, dirty=true) under a context that
// survives the caller's cancellation, bounded by dirtyReassertTimeout so a
// wedged connection can't hang the re-assert forever.
func (r *Runner) reassertDirty(ctx context.Context, version int64) {
	uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dirtyReassertTimeout)
	defer cancel()
	if err := r.driver.SetVersion(uctx, version, true); err != nil {
		r.log("failed to re-assert dirty state at version %d: %v", version, err)
	}
}
