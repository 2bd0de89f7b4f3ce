// Package multistmt splits a migration script body into individual
// statements so a Driver can execute them one at a time, e.g. to report
// which statement in a large script failed.
package multistmt

import (
	"bufio"
	"bytes"
	"io"

	"github.com/pkg/errors"
)

// DefaultMaxStatementSize bounds how large a single statement may grow
// while scanning for the next delimiter before parsing gives up.
const DefaultMaxStatementSize = 10 * 1024 * 1024

// ErrStatementTooLarge is returned when a single statement exceeds the
// configured maximum size without a delimiter being found.
var ErrStatementTooLarge = errors.New("multistmt: statement exceeds maximum size")

// Handler is called once per statement found in a multi-statement
// migration. Returning an error aborts parsing; the error is wrapped with
// the offending statement for context.
type Handler func(statement []byte) error

func splitWithDelimiter(delimiter []byte) bufio.SplitFunc {
	return func(data []byte, atEOF bool) (advance int, token []byte, err error) {
		if i := bytes.Index(data, delimiter); i >= 0 {
			return i + len(delimiter), data[:i+len(delimiter)], nil
		}
		if atEOF && len(data) > 0 {
			return len(data), data, nil
		}
		return 0, nil, nil
	}
}

func parse(reader io.Reader, maxStatementSize int, h Handler, split bufio.SplitFunc) error {
	if maxStatementSize <= 0 {
		maxStatementSize = DefaultMaxStatementSize
	}

	// bufio.Scanner only enforces its maximum when it has to grow the
	// buffer, so the initial capacity must not exceed maxStatementSize.
	initialSize := 4096
	if maxStatementSize < initialSize {
		initialSize = maxStatementSize
	}
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, initialSize), maxStatementSize)
	scanner.Split(split)

	for scanner.Scan() {
		statement := scanner.Bytes()
		if len(bytes.TrimSpace(statement)) == 0 {
			continue
		}
		stmt := make([]byte, len(statement))
		copy(stmt, statement)
		if err := h(stmt); err != nil {
			return errors.Wrapf(err, "statement: %s", stmt)
		}
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return ErrStatementTooLarge
		}
		return err
	}
	return nil
}

// Parse splits reader's content on literal occurrences of delimiter and
// calls h once per statement found, delimiter included. Statements made up
// only of whitespace are skipped; a bare delimiter is still passed to h.
func Parse(reader io.Reader, delimiter []byte, maxStatementSize int, h Handler) error {
	return parse(reader, maxStatementSize, h, splitWithDelimiter(delimiter))
}

// PGParse is like Parse but understands PostgreSQL dollar-quoted string
// bodies, so a delimiter occurring inside a function or trigger definition
// is not mistaken for a statement boundary.
func PGParse(reader io.Reader, delimiter []byte, maxStatementSize int, h Handler) error {
	return parse(reader, maxStatementSize, h, pgSplitWithDelimiter(delimiter))
}
