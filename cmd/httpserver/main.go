// Provisioning probe sidecar: serves POST /api/provision/probe plus the
// standard health, drain and metrics endpoints.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/ruteri/mtls-credential-provisioner/archivesource"
	"github.com/ruteri/mtls-credential-provisioner/audit"
	"github.com/ruteri/mtls-credential-provisioner/cmd/flags"
	"github.com/ruteri/mtls-credential-provisioner/httpserver"
)

var appFlags []cli.Flag = append([]cli.Flag{
	&cli.StringFlag{
		Name:  "listen-addr",
		Value: "127.0.0.1:8080",
		Usage: "address to listen on for API",
	},
	&cli.StringFlag{
		Name:  "database-url",
		Usage: "Postgres connection string for persisting audit records, defaults to DATABASE_URL",
	},
	&cli.BoolFlag{
		Name:  "dev-tls",
		Value: false,
		Usage: "serve the API over TLS with a throwaway self-signed localhost certificate",
	},
	flags.LogServiceFlagFn("provisioner-sidecar"),
}, flags.CommonFlags...)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "provisioner-sidecar",
		Usage: "Serve the mTLS provisioning probe API",
		Flags: appFlags,
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)
			listenAddr := cCtx.String("listen-addr")

			cfg := flags.ConfigureServer(cCtx, logger, listenAddr)
			cfg.EnableDevTLS = cCtx.Bool("dev-tls")

			databaseURL := cCtx.String("database-url")
			if databaseURL == "" {
				databaseURL = os.Getenv("DATABASE_URL")
			}
			if databaseURL != "" {
				pool, err := pgxpool.New(context.Background(), databaseURL)
				if err != nil {
					logger.Error("Could not connect to audit database", "err", err)
					return err
				}
				defer pool.Close()
				cfg.AuditStore = audit.NewStore(pool)
				logger.Info("Audit records will be persisted")
			}

			handler := httpserver.NewHandler(archivesource.NewFactory(logger), logger)
			server, err := httpserver.New(cfg, handler)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			logger.Info("Starting server")
			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")

			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
