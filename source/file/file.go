// Package file implements source.Source over a directory of migration
// scripts named "<version>_<description>.<direction>.<ext>".
package file

import (
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"

	"github.com/schemarun/schemarun/source"
)

func init() {
	source.Register("file", func(rawURL string) (source.Source, error) {
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, fmt.Errorf("file source: %w", err)
		}
		dir := u.Path
		if dir == "" {
			dir = u.Opaque
		}
		return New(dir), nil
	})
}

// Source loads a migration catalog from a directory, either on the native
// filesystem (via New) or from an arbitrary fs.FS (via NewFromFS, useful
// for go:embed catalogs).
type Source struct {
	fsys fs.FS
	dir  string
}

// New returns a Source rooted at dir on the native filesystem.
func New(dir string) *Source {
	return &Source{fsys: os.DirFS(dir), dir: "."}
}

// NewFromFS returns a Source rooted at dir within fsys.
func NewFromFS(fsys fs.FS, dir string) *Source {
	return &Source{fsys: fsys, dir: dir}
}

// Load enumerates the directory once and returns every up/down script it
// finds, in no particular order (the Registry sorts by version). Files
// that don't match the naming convention are skipped, not an error — a
// directory is free to hold README files alongside migrations.
func (s *Source) Load() ([]source.Script, error) {
	entries, err := fs.ReadDir(s.fsys, s.dir)
	if err != nil {
		return nil, source.SourceError{Path: s.dir, Err: err}
	}

	type key struct {
		version   uint64
		direction source.Direction
	}
	seen := make(map[key]string)

	var scripts []source.Script
	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		version, description, direction, err := source.ParseName(e.Name())
		if err != nil {
			continue
		}

		k := key{version, direction}
		if prior, dup := seen[k]; dup {
			return nil, source.DuplicatePairError{
				Version:   version,
				Direction: direction,
				First:     prior,
				Second:    e.Name(),
			}
		}
		seen[k] = e.Name()

		name := e.Name()
		fullPath := path.Join(s.dir, name)
		scripts = append(scripts, source.Script{
			Version:     version,
			Description: description,
			Direction:   direction,
			Path:        fullPath,
			Open: func() (io.ReadCloser, error) {
				f, err := s.fsys.Open(fullPath)
				if err != nil {
					return nil, fmt.Errorf("open %s: %w", fullPath, err)
				}
				return f, nil
			},
		})
	}

	return scripts, nil
}
