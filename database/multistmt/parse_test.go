package multistmt_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schemarun/schemarun/database/multistmt"
)

const maxStatementSize = 1024

func TestParse(t *testing.T) {
	testCases := []struct {
		name        string
		multiStmt   string
		delimiter   string
		expected    []string
		expectedErr error
	}{
		{name: "single statement, no delimiter",
			multiStmt: "single statement, no delimiter",
			delimiter: ";",
			expected:  []string{"single statement, no delimiter"}},
		{name: "single statement, one delimiter",
			multiStmt: "single statement, one delimiter;",
			delimiter: ";",
			expected:  []string{"single statement, one delimiter;"}},
		{name: "two statements, no trailing delimiter",
			multiStmt: "statement one; statement two",
			delimiter: ";",
			expected:  []string{"statement one;", " statement two"}},
		{name: "two statements, with trailing delimiter",
			multiStmt: "statement one; statement two;",
			delimiter: ";",
			expected:  []string{"statement one;", " statement two;"}},
		{name: "whitespace-only statements are skipped",
			multiStmt: "  ;;statement one;\n  ",
			delimiter: ";",
			expected:  []string{"  ;", ";", "statement one;"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			stmts := make([]string, 0, len(tc.expected))
			err := multistmt.Parse(strings.NewReader(tc.multiStmt),
				[]byte(tc.delimiter), maxStatementSize, func(b []byte) error {
					stmts = append(stmts, string(b))
					return nil
				})
			assert.Equal(t, tc.expectedErr, err)
			assert.Equal(t, tc.expected, stmts)
		})
	}
}

func TestParseDiscontinue(t *testing.T) {
	multiStmt := "statement one; statement two"
	delimiter := ";"
	expected := []string{"statement one;"}

	stmts := make([]string, 0, len(expected))
	err := multistmt.Parse(strings.NewReader(multiStmt), []byte(delimiter),
		maxStatementSize, func(b []byte) error {
			stmts = append(stmts, string(b))
			return assert.AnError
		})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, expected, stmts)
}

func TestParseStatementTooLarge(t *testing.T) {
	multiStmt := strings.Repeat("x", 100) + ";"
	err := multistmt.Parse(strings.NewReader(multiStmt), []byte(";"), 10,
		func(b []byte) error { return nil })
	assert.ErrorIs(t, err, multistmt.ErrStatementTooLarge)
}
