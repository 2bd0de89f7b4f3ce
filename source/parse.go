package source

import (
	"regexp"
	"strconv"
	"strings"
)

// NamePattern matches "<version>_<description>.<direction>.<ext>", e.g.
// "20240102150405_add_users_table.up.sql". Direction is case-insensitive.
var NamePattern = regexp.MustCompile(`^([0-9]+)_(.*)\.(?i:(up|down))\.(.*)$`)

// ParseName parses a migration filename into its version, human-readable
// description (underscores shown as spaces), and direction. Returns
// UnparseableNameError if name does not match NamePattern.
func ParseName(name string) (version uint64, description string, direction Direction, err error) {
	m := NamePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, "", "", UnparseableNameError{Name: name}
	}

	version, err = strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, "", "", UnparseableNameError{Name: name}
	}

	description = strings.ReplaceAll(m[2], "_", " ")
	direction = Direction(strings.ToLower(m[3]))
	return version, description, direction, nil
}
