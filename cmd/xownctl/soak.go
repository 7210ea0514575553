package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xown/internal/config"
	"github.com/omeyang/xown/pkg/resource/xregistry"
	"github.com/omeyang/xown/pkg/resource/xres"
	"github.com/omeyang/xown/pkg/resource/xshared"
)

func (a *app) soakCommand() *cli.Command {
	return &cli.Command{
		Name:         "soak",
		Usage:        "并发复制/析构压测，验证每个资源恰好释放一次",
		OnUsageError: onUsageError,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "并发 goroutine 数",
			},
			&cli.IntFlag{
				Name:    "rounds",
				Aliases: []string{"r"},
				Usage:   "轮数",
			},
			&cli.IntFlag{
				Name:  "clones",
				Usage: "每个 worker 每轮的复制/析构次数",
			},
			&cli.IntFlag{
				Name:  "keys",
				Usage: "大于 0 时压测注册表，在该数量的 key 上并发获取",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := a.cfg
			if cmd.IsSet("workers") {
				cfg.Soak.Workers = cmd.Int("workers")
			}
			if cmd.IsSet("rounds") {
				cfg.Soak.Rounds = cmd.Int("rounds")
			}
			if cmd.IsSet("clones") {
				cfg.Soak.Clones = cmd.Int("clones")
			}
			if cmd.IsSet("keys") {
				cfg.Soak.Keys = cmd.Int("keys")
			}
			if err := cfg.Validate(); err != nil {
				return &usageError{msg: "invalid soak settings", err: err}
			}
			return a.runSoak(ctx, cfg.Soak)
		},
	}
}

func (a *app) runSoak(ctx context.Context, cfg config.Soak) error {
	var obs xres.Counter
	start := time.Now()

	var (
		failures []string
		err      error
		mode     = "shared"
	)
	if cfg.Keys > 0 {
		mode = "registry"
		failures, err = soakRegistry(ctx, cfg, a.logger, &obs)
	} else {
		failures, err = soakShared(ctx, cfg, a.logger, &obs)
	}
	if err != nil {
		return err
	}

	s := obs.Snapshot()
	a.logger.InfoContext(ctx, "soak finished",
		slog.String("mode", mode),
		slog.Int("workers", cfg.Workers),
		slog.Int("rounds", cfg.Rounds),
		slog.Int("clones", cfg.Clones),
		slog.Int64("acquired", s.Acquired),
		slog.Int64("released", s.Released),
		slog.Int("failures", len(failures)),
		slog.Duration("elapsed", time.Since(start)),
	)

	if len(failures) > 0 || s.Live() != 0 {
		for _, f := range failures {
			fmt.Fprintln(a.stderr, f)
		}
		fmt.Fprintf(a.stderr, "soak %s: FAILED (%d failures, %d live)\n", mode, len(failures), s.Live())
		return &exitError{code: 1}
	}
	fmt.Fprintf(a.stdout, "soak %s: workers=%d rounds=%d clones=%d acquired=%d released=%d: ok\n",
		mode, cfg.Workers, cfg.Rounds, cfg.Clones, s.Acquired, s.Released)
	return nil
}

// soakShared 每轮创建一个共享资源，worker 与根引用并发复制/析构，
// 检查资源恰好释放一次且弱引用随之失效。
func soakShared(ctx context.Context, cfg config.Soak, logger *slog.Logger, obs xres.Observer) ([]string, error) {
	var failures []string
	for round := range cfg.Rounds {
		if err := ctx.Err(); err != nil {
			return failures, err
		}

		var released atomic.Int32
		root, err := xshared.New(round, func() error {
			released.Add(1)
			return nil
		}, xshared.WithObserver(obs), xshared.WithLogger(logger))
		if err != nil {
			return failures, err
		}
		weak, err := root.Weak()
		if err != nil {
			return failures, err
		}

		g, gctx := errgroup.WithContext(ctx)
		for range cfg.Workers {
			mine, err := root.Clone()
			if err != nil {
				return failures, err
			}
			g.Go(func() error {
				defer mine.Close()
				for range cfg.Clones {
					if err := gctx.Err(); err != nil {
						return err
					}
					c, err := mine.Clone()
					if err != nil {
						return err
					}
					if err := c.Close(); err != nil {
						return err
					}
				}
				return nil
			})
		}
		closeErr := root.Close()
		if err := g.Wait(); err != nil {
			return failures, err
		}
		if closeErr != nil {
			return failures, closeErr
		}

		if n := released.Load(); n != 1 || !weak.Expired() {
			failures = append(failures, fmt.Sprintf("round %d: released %d time(s), expired=%t", round, n, weak.Expired()))
		}
	}
	return failures, nil
}

// keyTally 统计注册表压测中每个 key 的打开与释放次数。
type keyTally struct {
	mu       sync.Mutex
	opened   map[string]int
	released map[string]int
}

func (t *keyTally) open(_ context.Context, key string) (xres.Resource[string], error) {
	t.mu.Lock()
	t.opened[key]++
	t.mu.Unlock()
	return xres.Resource[string]{
		Value: key,
		Kind:  xres.KindConn,
		Release: func() error {
			t.mu.Lock()
			t.released[key]++
			t.mu.Unlock()
			return nil
		},
	}, nil
}

// soakRegistry 在容量只有 key 数一半的注册表上并发获取，
// 淘汰与重新打开交错发生；结束后每次打开都必须恰好对应一次释放。
func soakRegistry(ctx context.Context, cfg config.Soak, logger *slog.Logger, obs xres.Observer) ([]string, error) {
	tally := &keyTally{opened: map[string]int{}, released: map[string]int{}}
	reg, err := xregistry.New(tally.open,
		xregistry.WithCapacity(max(1, cfg.Keys/2)),
		xregistry.WithShardCount(1),
		xregistry.WithLogger(logger),
		xregistry.WithObserver(obs),
	)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	for w := range cfg.Workers {
		g.Go(func() error {
			for i := range cfg.Rounds {
				key := fmt.Sprintf("key-%d", (w+i)%cfg.Keys)
				ref, err := reg.Get(gctx, key)
				if errors.Is(err, xregistry.ErrEvicted) {
					// 容量远小于并发度时锚可能连续被淘汰，跳过本次即可。
					continue
				}
				if err != nil {
					return err
				}
				for range cfg.Clones {
					c, err := ref.Clone()
					if err != nil {
						_ = ref.Close()
						return err
					}
					_ = c.Close()
				}
				if err := ref.Close(); err != nil {
					return err
				}
			}
			return nil
		})
	}
	werr := g.Wait()
	if err := reg.Close(); err != nil {
		return nil, err
	}
	if werr != nil {
		return nil, werr
	}

	tally.mu.Lock()
	defer tally.mu.Unlock()
	var failures []string
	keys := make([]string, 0, len(tally.opened))
	for k := range tally.opened {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if tally.opened[k] != tally.released[k] {
			failures = append(failures, fmt.Sprintf("%s: opened %d, released %d", k, tally.opened[k], tally.released[k]))
		}
	}
	return failures, nil
}
