package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/webitel/notification-relay/config"
)

const (
	ServiceName      = "notification-relay"
	ServiceNamespace = "webitel"
)

var (
	version        = "0.0.0"
	commit         = "hash"
	commitDate     = time.Now().String()
	branch         = "branch"
	buildTimestamp = ""
)

func Run() error {
	app := &cli.App{
		Name:    ServiceName,
		Usage:   "Real-time notification relay",
		Version: version,
		Commands: []*cli.Command{
			serverCmd(),
			monitorCmd(),
		},
	}

	return app.Run(os.Args)
}

func serverCmd() *cli.Command {
	return &cli.Command{
		Name:      "server",
		Aliases:   []string{"s"},
		Usage:     "Run the HTTP, WebSocket and gRPC health servers",
		ArgsUsage: "[-- config overrides, e.g. --http-addr :7001]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config_file",
				Usage:   "Path to the configuration file",
				EnvVars: []string{config.EnvPrefix + "_CONFIG_FILE"},
			},
		},
		Action: func(c *cli.Context) error {
			level := new(slog.LevelVar)
			cfg, watcher, err := config.LoadWatched(c.String("config_file"), c.Args().Slice(), level)
			if err != nil {
				return err
			}
			app := NewApp(cfg, level, watcher)

			startCtx, cancel := context.WithTimeout(c.Context, app.StartTimeout())
			defer cancel()
			if err := app.Start(startCtx); err != nil {
				return err
			}

			slog.Info("SERVICE_STARTED",
				"version", version,
				"commit", commit,
				"commit_date", commitDate,
				"branch", branch,
				"build_timestamp", buildTimestamp,
			)

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			slog.Info("Shutting down...")
			stopCtx, cancelStop := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer cancelStop()
			return app.Stop(stopCtx)
		},
	}
}
