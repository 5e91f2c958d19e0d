package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/semmidev/dbstash/internal/adapter/encryption"
	"github.com/semmidev/dbstash/internal/app"
	"github.com/semmidev/dbstash/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cliApp := &cli.App{
		Name:  "dbstash",
		Usage: "dump a database, compress it and ship it to object storage",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config yaml (environment variables override it)",
				EnvVars: []string{"DBSTASH_CONFIG"},
			},
		},
		Action: daemon,
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run one backup now and exit",
				Action: func(c *cli.Context) error {
					return withApp(c, func(a *app.App) error {
						return a.RunOnce(c.Context)
					})
				},
			},
			{
				Name:   "daemon",
				Usage:  "run backups on the configured cron schedule",
				Action: daemon,
			},
			{
				Name:  "key",
				Usage: "print the remote key a backup started now would use",
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return fmt.Errorf("load config: %w", err)
					}
					key, err := app.RemoteKey(cfg, time.Now())
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, key)
					return nil
				},
			},
			{
				Name:  "open",
				Usage: "decrypt a sealed backup",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "in", Required: true, Usage: "sealed file (.enc)"},
					&cli.StringFlag{Name: "out", Required: true, Usage: "where to write the decrypted file"},
					&cli.StringFlag{Name: "password", EnvVars: []string{"BACKUP_PASSWORD"}, Usage: "backup password"},
				},
				Action: func(c *cli.Context) error {
					sealer := encryption.NewAESGCM(c.String("password"))
					if err := sealer.Preflight(); err != nil {
						return err
					}
					return sealer.Open(c.Context, c.String("in"), c.String("out"))
				},
			},
		},
	}

	if err := cliApp.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func daemon(c *cli.Context) error {
	return withApp(c, func(a *app.App) error {
		return a.Run(c.Context)
	})
}

func withApp(c *cli.Context, fn func(*app.App) error) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	application, err := app.New(c.Context, cfg)
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}
	defer application.Shutdown()

	return fn(application)
}
