package schemarun

import (
	"context"
	"fmt"

	"github.com/schemarun/schemarun/database"
	"github.com/schemarun/schemarun/source"
)

// bindMigrations groups a flat list of up/down Scripts by version and
// produces the Migration entities the Registry is built from. A version
// missing one of its two directions is not an error here — it only
// surfaces when that direction is actually invoked.
func bindMigrations(scripts []source.Script) ([]Migration, error) {
	type pair struct {
		up, down    *source.Script
		description string
	}

	byVersion := make(map[uint64]*pair)
	for i := range scripts {
		s := &scripts[i]
		p, ok := byVersion[s.Version]
		if !ok {
			p = &pair{}
			byVersion[s.Version] = p
		}
		if p.description == "" {
			p.description = s.Description
		}
		switch s.Direction {
		case source.Up:
			p.up = s
		case source.Down:
			p.down = s
		default:
			return nil, source.UnparseableNameError{Name: s.Path}
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for version, p := range byVersion {
		migrations = append(migrations, Migration{
			Version:     version,
			Description: p.description,
			Apply:       scriptAction(p.up),
			Revert:      scriptAction(p.down),
		})
	}
	return migrations, nil
}

func scriptAction(s *source.Script) Action {
	if s == nil {
		return func(ctx context.Context, driver database.Driver) error {
			return fmt.Errorf("schemarun: no script registered for this direction")
		}
	}
	return func(ctx context.Context, driver database.Driver) error {
		sd, ok := driver.(database.ScriptDriver)
		if !ok {
			return fmt.Errorf("schemarun: driver %T does not implement ScriptDriver, cannot execute scripted migrations", driver)
		}
		rc, err := s.Open()
		if err != nil {
			return err
		}
		defer rc.Close()
		return sd.ExecuteScript(ctx, rc)
	}
}
