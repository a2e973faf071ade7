// Provision command: decodes a PKCS#12 archive, provisions an ephemeral
// mTLS client context, optionally performs a request with it, and tears the
// credentials down before exiting.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/ruteri/mtls-credential-provisioner/archivesource"
	"github.com/ruteri/mtls-credential-provisioner/audit"
	"github.com/ruteri/mtls-credential-provisioner/cmd/flags"
	"github.com/ruteri/mtls-credential-provisioner/httpclient"
	"github.com/ruteri/mtls-credential-provisioner/provisioner"
	"github.com/ruteri/mtls-credential-provisioner/resolver"
)

var appFlags []cli.Flag = []cli.Flag{
	flags.ArchiveFlag,
	flags.PassphraseEnvFlag,
	flags.StagingModeFlag,
	flags.ResolverAddrFlag,
	&cli.StringFlag{
		Name:  "target-url",
		Usage: "URL to request with the provisioned context; empty to only report the identity",
	},
	&cli.StringFlag{
		Name:  "service-domain",
		Usage: "service domain to discover via SRV records instead of target-url",
	},
	&cli.Int64Flag{
		Name:  "timeout-seconds",
		Value: 30,
		Usage: "overall timeout for the provisioned operation",
	},
	flags.LogJsonFlag,
	flags.LogDebugFlag,
	flags.LogUidFlag,
	flags.LogServiceFlagFn("provision"),
}

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "provision",
		Usage: "Run one request through an ephemeral mTLS client context",
		Flags: appFlags,
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			mode, err := provisioner.ParseStagingMode(cCtx.String(flags.StagingModeFlag.Name))
			if err != nil {
				logger.Error("Invalid staging mode", "err", err)
				return err
			}

			passphrase := os.Getenv(cCtx.String(flags.PassphraseEnvFlag.Name))

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			ctx, cancelTimeout := context.WithTimeout(ctx,
				time.Duration(cCtx.Int64("timeout-seconds"))*time.Second)
			defer cancelTimeout()

			archive, err := readArchive(ctx, cCtx.String(flags.ArchiveFlag.Name), logger)
			if err != nil {
				logger.Error("Could not read archive", "err", err)
				return err
			}

			targetURL := cCtx.String("target-url")
			if domain := cCtx.String("service-domain"); domain != "" {
				r := resolver.New(cCtx.String(flags.ResolverAddrFlag.Name))
				targetURL, err = httpclient.ResolveBaseURL(ctx, r, domain)
				if err != nil {
					logger.Error("Service discovery failed", "err", err)
					return err
				}
				logger.Info("Resolved service endpoint", "domain", domain, "url", targetURL)
			}

			input := provisioner.ArchiveInput{PayloadB64: archive, Passphrase: passphrase}
			err = provisioner.WithProvisionedContext(ctx, input, mode,
				func(ctx context.Context, tlsCfg *tls.Config) error {
					if targetURL == "" {
						return reportIdentity(tlsCfg, mode)
					}
					return performRequest(ctx, logger, tlsCfg, targetURL)
				},
				provisioner.WithLogger(logger),
			)
			if err != nil {
				logger.Error("Provisioned operation failed", "err", err)
				return err
			}

			logger.Info("Provisioned operation completed, credentials torn down")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// readArchive fetches the base64 archive payload from stdin or a location
// URI.
func readArchive(ctx context.Context, location string, logger *slog.Logger) ([]byte, error) {
	if location == "-" {
		return io.ReadAll(io.LimitReader(os.Stdin, 10*1024*1024))
	}

	source, err := archivesource.NewFactory(logger).SourceFor(location)
	if err != nil {
		return nil, err
	}
	return source.Fetch(ctx)
}

func reportIdentity(tlsCfg *tls.Config, mode provisioner.StagingMode) error {
	if len(tlsCfg.Certificates) == 0 || len(tlsCfg.Certificates[0].Certificate) == 0 {
		return fmt.Errorf("provisioned context has no certificate")
	}
	leaf, err := x509.ParseCertificate(tlsCfg.Certificates[0].Certificate[0])
	if err != nil {
		return err
	}

	return json.NewEncoder(os.Stdout).Encode(map[string]any{
		"subject":      leaf.Subject.String(),
		"issuer":       leaf.Issuer.String(),
		"not_after":    leaf.NotAfter,
		"chain_length": len(tlsCfg.Certificates[0].Certificate),
		"staging_mode": mode.String(),
	})
}

func performRequest(ctx context.Context, logger *slog.Logger, tlsCfg *tls.Config, targetURL string) error {
	client := httpclient.New(tlsCfg, httpclient.Config{
		Auditor: audit.NewRecorder(logger),
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if err != nil {
		return err
	}

	logger.Info("Request completed", "status", resp.StatusCode, "bytes", len(body))
	fmt.Println(string(body))
	return nil
}
