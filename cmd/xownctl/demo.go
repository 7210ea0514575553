package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/xown/pkg/resource/xres"
	"github.com/omeyang/xown/pkg/resource/xscope"
	"github.com/omeyang/xown/pkg/resource/xshared"
	"github.com/omeyang/xown/pkg/resource/xunique"
)

func (a *app) demoCommand() *cli.Command {
	return &cli.Command{
		Name:         "demo",
		Usage:        "演示独占、共享与作用域退出的释放时机",
		OnUsageError: onUsageError,
		Action: func(ctx context.Context, _ *cli.Command) error {
			return a.runDemo(ctx)
		},
	}
}

func (a *app) runDemo(ctx context.Context) error {
	var obs xres.Counter
	steps := []func(context.Context, io.Writer, *xres.Counter) error{
		demoExclusive,
		demoShared,
		demoScope,
	}
	for _, step := range steps {
		if err := step(ctx, a.stdout, &obs); err != nil {
			return err
		}
	}
	s := obs.Snapshot()
	fmt.Fprintf(a.stdout, "summary: acquired=%d released=%d live=%d\n", s.Acquired, s.Released, s.Live())
	a.logger.InfoContext(ctx, "demo finished", "acquired", s.Acquired, "released", s.Released)
	return nil
}

// tally 返回一个打印并计数的释放函数。
func tally(w io.Writer, name string, n *atomic.Int32) xres.ReleaseFunc {
	return func() error {
		n.Add(1)
		fmt.Fprintf(w, "  release %s\n", name)
		return nil
	}
}

func demoExclusive(ctx context.Context, w io.Writer, obs *xres.Counter) error {
	fmt.Fprintln(w, "== exclusive owner ==")
	var released atomic.Int32

	src, err := xunique.Acquire(ctx, func(context.Context) (xres.Resource[int], error) {
		return xres.New(1, tally(w, "1", &released)), nil
	}, xunique.WithObserver(obs))
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "acquire(1): get = %d\n", src.MustGet())

	dst := src.Move()
	_, err = src.Get()
	fmt.Fprintf(w, "move: source valid = %t, get error = %v\n", src.Valid(), err)
	fmt.Fprintf(w, "destination: get = %d\n", dst.MustGet())

	// 源 owner 的作用域退出：Close 为空操作。
	if err := src.Close(); err != nil {
		return err
	}
	fmt.Fprintf(w, "source scope exit: released %d time(s)\n", released.Load())

	if err := dst.Close(); err != nil {
		return err
	}
	fmt.Fprintf(w, "destination scope exit: released %d time(s)\n", released.Load())

	if err := dst.Reset(); err != nil {
		return err
	}
	if err := dst.Reset(); err != nil {
		return err
	}
	fmt.Fprintf(w, "reset empty owner twice: released %d time(s)\n", released.Load())
	return nil
}

func demoShared(ctx context.Context, w io.Writer, obs *xres.Counter) error {
	fmt.Fprintln(w, "== shared owner ==")
	var released atomic.Int32

	first, err := xshared.Acquire(ctx, func(context.Context) (xres.Resource[int], error) {
		return xres.New(3, tally(w, "3", &released)), nil
	}, xshared.WithObserver(obs))
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "acquire(3): count = %d\n", first.Count())

	second, err := first.Clone()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "copy: count = %d, value = %d\n", first.Count(), second.MustGet())

	if err := second.Close(); err != nil {
		return err
	}
	fmt.Fprintf(w, "destroy copy: count = %d, released %d time(s)\n", first.Count(), released.Load())

	if err := first.Close(); err != nil {
		return err
	}
	fmt.Fprintf(w, "destroy first: count = %d, released %d time(s)\n", first.Count(), released.Load())
	return nil
}

func demoScope(ctx context.Context, w io.Writer, obs *xres.Counter) error {
	fmt.Fprintln(w, "== scope exit ==")
	var order []string
	err := xscope.Run(ctx, func(ctx context.Context, s *xscope.Scope) error {
		for _, name := range []string{"a", "b", "c"} {
			if _, err := xscope.Unique(ctx, s, func(context.Context) (xres.Resource[string], error) {
				return xres.New(name, func() error {
					order = append(order, name)
					return nil
				}), nil
			}, xunique.WithObserver(obs)); err != nil {
				return err
			}
		}
		fmt.Fprintf(w, "acquired a, b, c: %d cleanups pending\n", s.Len())
		return nil
	}, xscope.WithName("demo"))
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "release order: %s\n", strings.Join(order, ", "))
	return nil
}
