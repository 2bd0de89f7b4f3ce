// Package stub implements an in-memory Driver used to unit-test the
// Runner without a real datastore. It records the sequence of scripts it
// was asked to execute so tests can assert on apply/revert ordering.
package stub

import (
	"context"
	"io"
	"reflect"

	"go.uber.org/atomic"

	"github.com/schemarun/schemarun/database"
)

func init() {
	database.Register("stub", &Stub{})
}

// DropMarker is appended to Sequence by Drop so tests can assert on when a
// drop happened relative to applied scripts.
const DropMarker = "DROP"

// Stub is an in-memory Driver. The zero value is not ready for use; obtain
// one via Open or WithInstance.
type Stub struct {
	URL            string
	Instance       interface{}
	CurrentVersion int64
	Sequence       []string
	LastScript     []byte
	IsDirty        bool
	isLocked       atomic.Bool

	Config *Config
}

// Config holds Stub-specific options. Currently empty; present so the
// WithInstance signature mirrors the real drivers.
type Config struct{}

func (s *Stub) Open(ctx context.Context, url string) (database.Driver, error) {
	return &Stub{
		URL:            url,
		CurrentVersion: database.NilVersion,
		Sequence:       make([]string, 0),
		Config:         &Config{},
	}, nil
}

// WithInstance wraps an already-configured instance value as a Stub Driver,
// mirroring the WithInstance constructors real drivers expose for
// already-open connections.
func WithInstance(ctx context.Context, instance interface{}, config *Config) (database.Driver, error) {
	return &Stub{
		Instance:       instance,
		CurrentVersion: database.NilVersion,
		Sequence:       make([]string, 0),
		Config:         config,
	}, nil
}

func (s *Stub) Close(ctx context.Context) error {
	return nil
}

func (s *Stub) Lock(ctx context.Context) error {
	if !s.isLocked.CAS(false, true) {
		return database.ErrLocked
	}
	return nil
}

func (s *Stub) Unlock(ctx context.Context) error {
	s.isLocked.Store(false)
	return nil
}

// ExecuteScript records the script body and appends it to Sequence.
func (s *Stub) ExecuteScript(ctx context.Context, r io.Reader) error {
	body, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.LastScript = body
	s.Sequence = append(s.Sequence, string(body))
	return nil
}

func (s *Stub) SetVersion(ctx context.Context, version int64, dirty bool) error {
	s.CurrentVersion = version
	s.IsDirty = dirty
	return nil
}

func (s *Stub) Version(ctx context.Context) (version int64, dirty bool, err error) {
	return s.CurrentVersion, s.IsDirty, nil
}

func (s *Stub) Drop(ctx context.Context) error {
	s.CurrentVersion = database.NilVersion
	s.LastScript = nil
	s.Sequence = append(s.Sequence, DropMarker)
	return nil
}

// EqualSequence reports whether seq matches the recorded execution order.
func (s *Stub) EqualSequence(seq []string) bool {
	return reflect.DeepEqual(seq, s.Sequence)
}
