package app

import (
	"context"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"
)

// Command はアプリケーションの起動モード（サブコマンド名）を表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker はワーカーモードで起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// Version はビルド時に -ldflags "-X" で上書きされる。
var Version = "dev"

// NewCommand はルートコマンドを組み立てる。
// サブコマンドを省略した場合は serve として動作する。
func NewCommand(w io.Writer) *cli.Command {
	serve := func(ctx context.Context, _ *cli.Command) error {
		cfg, err := Init(w)
		if err != nil {
			return err
		}
		return runServe(ctx, cfg)
	}

	return &cli.Command{
		Name:      "movieverse",
		Usage:     "Movie catalog backend with per-browser workspaces",
		Version:   Version,
		Writer:    w,
		ErrWriter: w,
		Action:    serve,
		Commands: []*cli.Command{
			{
				Name:   string(CommandServe),
				Usage:  "Start the API server",
				Action: serve,
			},
			{
				Name:  string(CommandWorker),
				Usage: "Run periodic maintenance jobs",
				Action: func(ctx context.Context, _ *cli.Command) error {
					cfg, err := Init(w)
					if err != nil {
						return err
					}
					return runWorker(ctx, cfg)
				},
			},
			{
				Name:  string(CommandMigrate),
				Usage: "Apply pending database migrations",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "steps",
						Usage: "Apply N migrations, or roll back N when negative (0 applies all)",
					},
					&cli.BoolFlag{
						Name:  "status",
						Usage: "Print the current schema version and exit",
					},
				},
				Action: func(_ context.Context, cmd *cli.Command) error {
					cfg, err := Init(w)
					if err != nil {
						return err
					}
					return runMigrate(w, cfg, migrateOptions{
						Steps:  int(cmd.Int("steps")),
						Status: cmd.Bool("status"),
					})
				},
			},
			{
				// healthcheck は軽量サブコマンドのため、設定の読み込みをスキップする
				Name:  string(CommandHealthcheck),
				Usage: "Check /healthz of a running server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "port",
						Aliases: []string{"p"},
						Usage:   "Port of the local server",
						Value:   "8080",
						Sources: cli.EnvVars("PORT"),
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runHealthcheck(ctx, cmd.String("port"))
				},
			},
		},
	}
}

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Argsをそのまま渡す。
func Run(ctx context.Context, w io.Writer, args []string) error {
	if err := NewCommand(w).Run(ctx, args); err != nil {
		return fmt.Errorf("movieverse: %w", err)
	}
	return nil
}
