package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/schemarun/schemarun/database/postgres"
	_ "github.com/schemarun/schemarun/database/sqlite"
	_ "github.com/schemarun/schemarun/source/file"
)

var (
	errInvalidSequenceWidth     = errors.New("Digits must be positive")
	errInvalidTimeFormat        = errors.New("Time format may not be empty")
	errIncompatibleSeqAndFormat = errors.New("The seq and format options are mutually exclusive")
)

// nextSeqVersion computes the next sequential migration version given the
// glob matches of files already present in the target directory.
func nextSeqVersion(matches []string, seqDigits int) (string, error) {
	if seqDigits <= 0 {
		return "", errInvalidSequenceWidth
	}

	next := uint64(1)
	if len(matches) > 0 {
		filename := filepath.Base(matches[len(matches)-1])
		idx := strings.Index(filename, "_")
		if idx < 1 {
			return "", fmt.Errorf("Malformed migration filename: %s", filename)
		}
		var err error
		next, err = strconv.ParseUint(filename[:idx], 10, 64)
		if err != nil {
			return "", err
		}
		next++
	}

	nextStr := strconv.FormatUint(next, 10)
	if len(nextStr) > seqDigits {
		return "", fmt.Errorf("Next sequence number %s too large. At most %d digits are allowed", nextStr, seqDigits)
	}
	return strings.Repeat("0", seqDigits-len(nextStr)) + nextStr, nil
}

// timeVersion renders startTime as a migration version prefix per format,
// supporting the "unix"/"unixNano" shorthands alongside Go time layouts.
func timeVersion(startTime time.Time, format string) (string, error) {
	switch format {
	case "":
		return "", errInvalidTimeFormat
	case "unix":
		return strconv.FormatInt(startTime.Unix(), 10), nil
	case "unixNano":
		return strconv.FormatInt(startTime.UnixNano(), 10), nil
	default:
		return startTime.Format(format), nil
	}
}

// cleanDir normalizes a migrations directory argument to always end in "/",
// except for "." (the implicit cwd, rendered as "") and "/".
func cleanDir(dir string) string {
	dir = filepath.Clean(dir)
	switch dir {
	case ".":
		return ""
	case "/":
		return dir
	default:
		return dir + "/"
	}
}

// createCmd creates a new pair of up/down migration files named either
// sequentially or from a timestamp, per the format/seq arguments. The
// trailing bool is reserved for interactive callers (confirmation prompts
// before overwriting); the file-level collision check always applies.
func createCmd(dir string, startTime time.Time, format string, name string, ext string, seq bool, seqDigits int, _ bool) error {
	dir = cleanDir(dir)
	if seq && format != defaultTimeFormat {
		return errIncompatibleSeqAndFormat
	}

	var version string
	if seq {
		matches, err := filepath.Glob(dir + "*." + ext)
		if err != nil {
			return err
		}
		version, err = nextSeqVersion(matches, seqDigits)
		if err != nil {
			return err
		}
	} else {
		var err error
		version, err = timeVersion(startTime, format)
		if err != nil {
			return err
		}
	}
	base := fmt.Sprintf("%v%v_%v.", dir, version, name)

	if err := os.MkdirAll(filepath.Clean(dir), os.ModePerm); err != nil {
		return err
	}

	if err := createFile(base+"up."+ext, version); err != nil {
		return err
	}
	return createFile(base+"down."+ext, version)
}

func createFile(fname, version string) error {
	if _, err := os.Stat(fname); err == nil {
		return fmt.Errorf("duplicate migration version: %s", version)
	}
	f, err := os.Create(fname)
	if err != nil {
		return err
	}
	return f.Close()
}

// numDownMigrationsFromArgs returns how many migrations to revert, and
// whether the caller should be prompted for confirmation first.
func numDownMigrationsFromArgs(applyAll bool, args []string) (int, bool, error) {
	if applyAll {
		if len(args) > 0 {
			return 0, false, errors.New("-all cannot be used with other arguments")
		}
		return -1, false, nil
	}

	switch len(args) {
	case 0:
		return -1, true, nil
	case 1:
		n, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return 0, false, errors.New("can't read limit argument N")
		}
		return int(n), false, nil
	default:
		return 0, false, errors.New("too many arguments")
	}
}
