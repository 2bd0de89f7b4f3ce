// Package testing provides a conformance suite that every Driver
// implementation can run against a live instance of its datastore. It lives
// in its own package so it stays a test-only dependency of driver packages.
package testing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/schemarun/schemarun/database"
)

// Test runs the full conformance suite against d. migration is a verbatim
// script body handed to ExecuteScript if d implements ScriptDriver.
func Test(t *testing.T, d database.Driver, migration []byte) {
	ctx := context.Background()

	TestNilVersion(t, ctx, d) // test first
	TestLockAndUnlock(t, ctx, d)
	if sd, ok := d.(database.ScriptDriver); ok && migration != nil {
		TestExecuteScript(t, ctx, sd, migration)
	}
	TestSetVersion(t, ctx, d) // also exercises Version
	// Drop leaves the driver in a reset state, test it last.
	TestDrop(t, ctx, d)
}

func TestNilVersion(t *testing.T, ctx context.Context, d database.Driver) {
	v, _, err := d.Version(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v != database.NilVersion {
		t.Fatalf("Version: expected version to be NilVersion (-1), got %v", v)
	}
}

func TestLockAndUnlock(t *testing.T, ctx context.Context, d database.Driver) {
	done := make(chan struct{})
	errs := make(chan error)

	go func() {
		timeout := time.After(15 * time.Second)
		select {
		case <-done:
		case <-timeout:
			errs <- fmt.Errorf("timeout after 15 seconds, looks like a deadlock in Lock/Unlock:\n%#v", d)
		}
	}()

	go func() {
		if err := d.Lock(ctx); err != nil {
			errs <- err
			return
		}

		// a second Lock must either block forever or report ErrLocked; since
		// this driver is single-threaded in-process, it must report it.
		if err := d.Lock(ctx); err == nil {
			errs <- errors.New("lock: expected second Lock to fail")
			return
		}

		if err := d.Unlock(ctx); err != nil {
			errs <- err
			return
		}

		if err := d.Lock(ctx); err != nil {
			errs <- err
			return
		}
		if err := d.Unlock(ctx); err != nil {
			errs <- err
			return
		}
		close(done)
	}()

	select {
	case <-done:
	case err := <-errs:
		t.Fatal(err)
	}
}

func TestExecuteScript(t *testing.T, ctx context.Context, d database.ScriptDriver, migration []byte) {
	if err := d.ExecuteScript(ctx, bytes.NewReader(migration)); err != nil {
		t.Fatal(err)
	}
}

func TestDrop(t *testing.T, ctx context.Context, d database.Driver) {
	if err := d.Drop(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestSetVersion(t *testing.T, ctx context.Context, d database.Driver) {
	testCases := []struct {
		name            string
		version         int64
		dirty           bool
		expectedVersion int64
		expectedDirty   bool
	}{
		{name: "set 1 dirty", version: 1, dirty: true, expectedVersion: 1, expectedDirty: true},
		{name: "re-set 1 dirty", version: 1, dirty: true, expectedVersion: 1, expectedDirty: true},
		{name: "set 2 clean", version: 2, dirty: false, expectedVersion: 2, expectedDirty: false},
		{name: "re-set 2 clean", version: 2, dirty: false, expectedVersion: 2, expectedDirty: false},
		{name: "last migration dirty", version: database.NilVersion, dirty: true, expectedVersion: database.NilVersion, expectedDirty: true},
		{name: "last migration clean", version: database.NilVersion, dirty: false, expectedVersion: database.NilVersion, expectedDirty: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := d.SetVersion(ctx, tc.version, tc.dirty); err != nil {
				t.Fatal("unexpected error:", err)
			}
			v, dirty, err := d.Version(ctx)
			if err != nil {
				t.Fatal("unexpected error:", err)
			}
			if v != tc.expectedVersion {
				t.Errorf("got version %v, want %v", v, tc.expectedVersion)
			}
			if dirty != tc.expectedDirty {
				t.Errorf("got dirty %v, want %v", dirty, tc.expectedDirty)
			}
		})
	}
}
