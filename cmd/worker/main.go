// Worker command: registers the provisioning workflow and its activities,
// validates the declarative wiring, and optionally executes one workflow.
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
	"os"

	"github.com/urfave/cli/v2"

	"github.com/ruteri/mtls-credential-provisioner/archivesource"
	"github.com/ruteri/mtls-credential-provisioner/cmd/flags"
	"github.com/ruteri/mtls-credential-provisioner/provisioner"
	"github.com/ruteri/mtls-credential-provisioner/workflow"
)

var appFlags []cli.Flag = []cli.Flag{
	&cli.StringFlag{
		Name:  "config",
		Value: "workers.yaml",
		Usage: "workflow wiring config",
	},
	&cli.StringFlag{
		Name:  "run",
		Usage: "execute the named workflow once with input from stdin, then exit",
	},
	flags.LogJsonFlag,
	flags.LogDebugFlag,
	flags.LogUidFlag,
	flags.LogServiceFlagFn("worker"),
}

func main() {
	app := &cli.App{
		Name:  "worker",
		Usage: "Validate and run provisioning workflows",
		Flags: appFlags,
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			registry := workflow.NewRegistry()
			if err := registerProvisioning(registry, logger); err != nil {
				return err
			}

			cfg, err := workflow.LoadConfig(cCtx.String("config"))
			if err != nil {
				logger.Error("Could not load workflow config", "err", err)
				return err
			}

			bindings, err := workflow.Bind(cfg, registry)
			if err != nil {
				logger.Error("Workflow wiring is invalid", "err", err)
				return err
			}
			for _, binding := range bindings {
				logger.Info("Workflow wired",
					"workflow", binding.Workflow.Name,
					"task_queue", binding.TaskQueue,
					"activities", len(binding.Activities))
			}

			name := cCtx.String("run")
			if name == "" {
				logger.Info("Wiring validated")
				return nil
			}

			wf, err := registry.ResolveWorkflow(name)
			if err != nil {
				return err
			}

			input, err := io.ReadAll(io.LimitReader(os.Stdin, 10*1024*1024))
			if err != nil {
				return err
			}

			output, err := wf.Handler(context.Background(), input)
			if err != nil {
				logger.Error("Workflow failed", "workflow", name, "err", err)
				return err
			}

			fmt.Println(string(output))
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// provisionInput is the JSON input of the provision workflow.
type provisionInput struct {
	SourceURI   string `json:"source_uri"`
	Passphrase  string `json:"passphrase,omitempty"`
	StagingMode string `json:"staging_mode,omitempty"`
}

// registerProvisioning wires the provision workflow: fetch the archive,
// provision a context from it, and report the identity it presents.
func registerProvisioning(registry *workflow.Registry, logger *slog.Logger) error {
	sources := archivesource.NewFactory(logger)

	fetchArchive := func(ctx context.Context, input []byte) ([]byte, error) {
		source, err := sources.SourceFor(string(input))
		if err != nil {
			return nil, err
		}
		return source.Fetch(ctx)
	}

	probeArchive := func(ctx context.Context, input []byte) ([]byte, error) {
		var req struct {
			ArchiveB64  string `json:"archive_b64"`
			Passphrase  string `json:"passphrase"`
			StagingMode string `json:"staging_mode"`
		}
		if err := json.Unmarshal(input, &req); err != nil {
			return nil, err
		}

		mode, err := provisioner.ParseStagingMode(req.StagingMode)
		if err != nil {
			return nil, err
		}

		var output []byte
		err = provisioner.WithProvisionedContext(ctx,
			provisioner.ArchiveInput{PayloadB64: []byte(req.ArchiveB64), Passphrase: req.Passphrase},
			mode,
			func(ctx context.Context, tlsCfg *tls.Config) error {
				if len(tlsCfg.Certificates) == 0 || len(tlsCfg.Certificates[0].Certificate) == 0 {
					return fmt.Errorf("provisioned context has no certificate")
				}
				leaf, err := x509.ParseCertificate(tlsCfg.Certificates[0].Certificate[0])
				if err != nil {
					return err
				}
				output, err = json.Marshal(map[string]any{
					"subject":   leaf.Subject.String(),
					"issuer":    leaf.Issuer.String(),
					"not_after": leaf.NotAfter,
				})
				return err
			},
			provisioner.WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		return output, nil
	}

	provision := func(ctx context.Context, input []byte) ([]byte, error) {
		var in provisionInput
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, err
		}

		archive, err := fetchArchive(ctx, []byte(in.SourceURI))
		if err != nil {
			return nil, err
		}

		probeReq, err := json.Marshal(map[string]string{
			"archive_b64":  string(archive),
			"passphrase":   in.Passphrase,
			"staging_mode": in.StagingMode,
		})
		if err != nil {
			return nil, err
		}
		return probeArchive(ctx, probeReq)
	}

	if err := registry.RegisterActivity("fetch-archive", fetchArchive); err != nil {
		return err
	}
	if err := registry.RegisterActivity("probe-archive", probeArchive); err != nil {
		return err
	}
	return registry.RegisterWorkflow("provision", []string{"fetch-archive", "probe-archive"}, provision)
}
