// Command rostersync moves the LMS department roster into the business
// tracking database: extract writes it to object storage as CSV, load upserts
// that CSV into the destination table.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/koustreak/rostersync/internal/config"
	"github.com/koustreak/rostersync/internal/logger"
	"github.com/koustreak/rostersync/internal/notify"
	"github.com/koustreak/rostersync/internal/pipeline"
	"github.com/koustreak/rostersync/internal/server"
)

// errRunFailed marks a run that completed with a failed outcome. The outcome
// itself has already been printed.
var errRunFailed = errors.New("run failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "rostersync",
		Short:         "Sync the LMS department roster into the business tracking database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (environment variables override it)")

	root.AddCommand(
		&cobra.Command{
			Use:   "extract",
			Short: "Pull the roster from the LMS and write it to object storage as CSV",
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, err := setup(configPath, (*config.Config).ValidateExtract)
				if err != nil {
					return err
				}
				defer a.close()
				return report(cmd, a.extractor().Run(cmd.Context()))
			},
		},
		&cobra.Command{
			Use:   "load",
			Short: "Upsert the roster CSV from object storage into the destination table",
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, err := setup(configPath, (*config.Config).ValidateLoad)
				if err != nil {
					return err
				}
				defer a.close()
				return report(cmd, a.loader().Run(cmd.Context()))
			},
		},
		&cobra.Command{
			Use:   "run",
			Short: "Extract, then load",
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, err := setup(configPath, validateBoth)
				if err != nil {
					return err
				}
				defer a.close()
				return report(cmd, pipeline.Sync(cmd.Context(), a.extractor(), a.loader()))
			},
		},
		&cobra.Command{
			Use:   "serve",
			Short: "Serve the HTTP trigger API and run the optional cron schedule",
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, err := setup(configPath, (*config.Config).ValidateServer)
				if err != nil {
					return err
				}
				defer a.close()

				e, l := a.extractor(), a.loader()
				srv, err := server.New(a.cfg.Server, a.cfg.Schedule.Cron, server.Jobs{
					Extract: e.Run,
					Load:    l.Run,
					Sync: func(ctx context.Context) pipeline.Outcome {
						return pipeline.Sync(ctx, e, l)
					},
				}, a.log)
				if err != nil {
					return err
				}
				return srv.Run(cmd.Context())
			},
		},
	)
	return root
}

func validateBoth(c *config.Config) error {
	if err := c.ValidateExtract(); err != nil {
		return err
	}
	return c.ValidateLoad()
}

// app is the per-process wiring shared by the subcommands.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	notifier notify.Notifier
}

func setup(path string, validate func(*config.Config) error) (*app, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	cfg.Log.Output = os.Stderr
	log := logger.New(&cfg.Log)
	logger.SetGlobal(log)

	n, err := notify.New(&cfg.Notify, log)
	if err != nil {
		// alerts are best effort; a run still goes ahead without them
		log.WarnWith("notifier unavailable, alerts will only be logged", err, nil)
		n = notify.NewLog(log)
	}
	return &app{cfg: cfg, log: log, notifier: n}, nil
}

func (a *app) deps() pipeline.Deps {
	return pipeline.Deps{Notifier: a.notifier, Log: a.log}
}

func (a *app) extractor() *pipeline.Extractor { return pipeline.NewExtractor(a.cfg, a.deps()) }
func (a *app) loader() *pipeline.Loader       { return pipeline.NewLoader(a.cfg, a.deps()) }

func (a *app) close() {
	if err := a.notifier.Close(); err != nil {
		a.log.WarnWith("failed to close notifier", err, nil)
	}
}

// report prints the outcome as JSON on stdout.
func report(cmd *cobra.Command, out pipeline.Outcome) error {
	body, err := sonic.ConfigStd.Marshal(out)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(body))
	if !out.OK() {
		return errRunFailed
	}
	return nil
}
