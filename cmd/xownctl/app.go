package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/xown/internal/config"
)

// app 保存一次运行的共享状态：输出、配置和日志。
type app struct {
	stdout io.Writer
	stderr io.Writer

	cfg      config.Config
	logger   *slog.Logger
	closeLog func() error
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout:   stdout,
		stderr:   stderr,
		cfg:      config.Default(),
		logger:   slog.New(slog.DiscardHandler),
		closeLog: func() error { return nil },
	}
}

// Command 创建 CLI 根命令。
func (a *app) Command() *cli.Command {
	return &cli.Command{
		Name:      "xownctl",
		Usage:     "资源所有权演示与压测工具",
		Version:   fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Writer:    a.stdout,
		ErrWriter: a.stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径（.yaml/.yml/.json）",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "日志级别 (debug/info/warn/error)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "日志格式 (text/json)",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "日志文件路径，为空时写 stderr",
			},
		},
		Commands: []*cli.Command{
			a.demoCommand(),
			a.soakCommand(),
		},
		Before:       a.setup,
		After:        a.teardown,
		OnUsageError: onUsageError,
		// 由 run() 统一映射退出码，禁止 urfave/cli 直接 os.Exit。
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
	}
}

func onUsageError(_ context.Context, _ *cli.Command, err error, _ bool) error {
	return &usageError{msg: "invalid arguments", err: err}
}

// setup 加载配置、应用全局参数并构建日志。
func (a *app) setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return ctx, &usageError{msg: "load config", err: err}
		}
		a.cfg = cfg
	}
	if cmd.IsSet("log-level") {
		a.cfg.Log.Level = cmd.String("log-level")
	}
	if cmd.IsSet("log-format") {
		a.cfg.Log.Format = cmd.String("log-format")
	}
	if cmd.IsSet("log-file") {
		a.cfg.Log.File = cmd.String("log-file")
	}

	logger, closeLog, err := newLogger(a.cfg.Log, a.stderr)
	if err != nil {
		return ctx, &usageError{msg: "configure logging", err: err}
	}
	a.logger, a.closeLog = logger, closeLog
	return ctx, nil
}

func (a *app) teardown(context.Context, *cli.Command) error {
	return a.closeLog()
}
