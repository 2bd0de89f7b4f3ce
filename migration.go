package schemarun

import (
	"context"

	"github.com/schemarun/schemarun/database"
)

// Action is a callable bound to a single Migration, invoked by the Runner
// to apply or revert that migration against driver. Implementations should
// honor ctx cancellation for long-running script execution.
type Action func(ctx context.Context, driver database.Driver) error

// Migration is an immutable catalog entry: a version, a human description,
// and the two actions that move the datastore across that version boundary.
// Two migrations sharing a version within the same Registry is a
// construction-time error (see DuplicateVersionError).
type Migration struct {
	Version     uint64
	Description string
	Apply       Action
	Revert      Action
}
