// Package database provides the Driver and ScriptDriver interfaces that
// every datastore backend must implement. The core migration engine keeps
// no datastore-specific knowledge; it only calls through these contracts.
package database

import (
	"context"
	"fmt"
	"io"
	"sync"

	iurl "github.com/schemarun/schemarun/internal/url"
)

// NilVersion is the wire sentinel for "no migration applied yet". It is
// translated to/from a nil *uint64 at the Driver boundary transparently.
const NilVersion int64 = -1

var (
	// ErrLocked is returned by Lock when a lock is already held.
	ErrLocked = fmt.Errorf("can't acquire lock")

	// ErrNotLocked describes an Unlock with no lock held. Unlock is
	// idempotent for the drivers in this module, so none of them returns it.
	ErrNotLocked = fmt.Errorf("can't unlock, lock was not held")
)

// Driver is the contract every datastore backend must implement. Drivers
// must not assume things nor try to correct user input; if in doubt,
// return an error.
type Driver interface {
	// Open returns a new driver instance configured from a URL. Called
	// at most once per instance.
	Open(ctx context.Context, url string) (Driver, error)

	// Close releases the underlying connection(s). Called at most once.
	Close(ctx context.Context) error

	// Lock acquires an exclusive coordination lock scoped to this
	// driver's migration table. Calling Lock twice without an
	// intervening Unlock returns ErrLocked.
	Lock(ctx context.Context) error

	// Unlock releases the lock. Idempotent: unlocking when not locked is
	// not an error. Callers must invoke Unlock with an uncancellable
	// context so locks are never leaked.
	Unlock(ctx context.Context) error

	// Version reads the current VersionState. May be called without
	// holding the lock (best-effort read). Returns NilVersion when no
	// migration has ever been applied.
	Version(ctx context.Context) (version int64, dirty bool, err error)

	// SetVersion atomically replaces the single row in the version
	// table. version == NilVersion && !dirty leaves the table empty.
	SetVersion(ctx context.Context, version int64, dirty bool) error

	// Drop deletes every object in the driver's working namespace. Drivers
	// that keep a version table recreate it, empty, at the end of Drop.
	Drop(ctx context.Context) error
}

// ScriptDriver extends Driver with the ability to execute a verbatim
// script body against the datastore, optionally inside a transaction.
// Migrations loaded from a textual Source detect this capability at apply
// time and refuse with a clear error if the configured Driver lacks it.
type ScriptDriver interface {
	Driver

	// ExecuteScript runs the script body read from r verbatim. An
	// empty/whitespace-only body is a no-op success.
	ExecuteScript(ctx context.Context, r io.Reader) error
}

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// Register makes a Driver available by the provided URL scheme. Register is
// typically called from a driver package's init function. Registering twice
// under the same name, or a nil driver, panics.
func Register(name string, driver Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if driver == nil {
		panic("database: Register driver is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("database: Register called twice for driver " + name)
	}
	drivers[name] = driver
}

// Open opens a Driver by its URL scheme, e.g. "postgres://..." dispatches
// to the driver registered under "postgres".
func Open(ctx context.Context, url string) (Driver, error) {
	scheme, err := iurl.SchemeFromURL(url)
	if err != nil {
		return nil, fmt.Errorf("database driver: %w", err)
	}

	driversMu.RLock()
	d, ok := drivers[scheme]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("database driver: unknown scheme %q (forgot to import it?)", scheme)
	}
	driver, err := d.Open(ctx, url)
	if err != nil {
		return nil, RedactPassword(err)
	}
	return driver, nil
}
