package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/schemarun/schemarun"
)

func gotoCmd(ctx context.Context, r *schemarun.Runner, v uint64) error {
	if err := r.Goto(ctx, v); err != nil && !errors.Is(err, schemarun.ErrNoChange) {
		return err
	}
	return printVersion(ctx, r)
}

func upCmd(ctx context.Context, r *schemarun.Runner, limit int) error {
	var err error
	switch {
	case limit < 0:
		err = r.Up(ctx)
	case limit == 0:
		return nil
	default:
		err = r.UpN(ctx, uint64(limit))
	}
	var short schemarun.ErrShortLimit
	if err != nil && !errors.Is(err, schemarun.ErrNoChange) && !errors.As(err, &short) {
		return err
	}
	return printVersion(ctx, r)
}

func downCmd(ctx context.Context, r *schemarun.Runner, limit int) error {
	var err error
	switch {
	case limit < 0:
		err = r.DownAll(ctx)
	case limit == 0:
		return nil
	default:
		err = r.DownN(ctx, uint64(limit))
	}
	var short schemarun.ErrShortLimit
	if err != nil && !errors.Is(err, schemarun.ErrNoChange) && !errors.As(err, &short) {
		return err
	}
	return printVersion(ctx, r)
}

func dropCmd(ctx context.Context, r *schemarun.Runner, force bool) error {
	return r.Drop(ctx, force)
}

func forceCmd(ctx context.Context, r *schemarun.Runner, v int) error {
	if err := r.Force(ctx, int64(v)); err != nil {
		return err
	}
	return printVersion(ctx, r)
}

func versionCmd(ctx context.Context, r *schemarun.Runner) error {
	return printVersion(ctx, r)
}

func printVersion(ctx context.Context, r *schemarun.Runner) error {
	v, dirty, err := r.Version(ctx)
	if err != nil {
		return err
	}
	if v == nil {
		fmt.Println("no migration")
		return nil
	}
	if dirty {
		fmt.Printf("%d (dirty)\n", *v)
		return nil
	}
	fmt.Println(*v)
	return nil
}
