package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"otpreport/internal/engine/otpstats"
	jobErrors "otpreport/internal/pkg/errors"
	"otpreport/internal/pkg/logger"
	"otpreport/internal/platform/config"
	"otpreport/internal/platform/metrics"
)

const (
	defaultConfigPath  = "configs/config.yaml"
	metricsPushTimeout = 10 * time.Second
)

// Options lets callers replace the clock and the client factory. Zero
// fields fall back to the real implementations.
type Options struct {
	Open OpenFunc
	Now  NowFunc
}

func (o Options) withDefaults() Options {
	if o.Open == nil {
		o.Open = openDeps
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type outcome struct {
	rows   int
	alerts int
}

// plan is a job whose inputs have been validated. Building a plan never
// touches the network, so bad input fails before any connection is made.
type plan struct {
	rng *otpstats.DateRange
	run func(ctx context.Context, deps *Deps) (outcome, error)
}

type planFunc func(cmd *cobra.Command, args []string, cfg *config.Config, now time.Time) (*plan, error)

type jobCommand struct {
	Use   string
	Short string
	Long  string
	Needs config.Needs
	Plan  planFunc
}

func (j jobCommand) Build(opts Options) *cobra.Command {
	opts = opts.withDefaults()

	cmd := &cobra.Command{
		Use:           j.Use,
		Short:         j.Short,
		Long:          j.Long,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().String("config", defaultConfigPath, "path to the YAML config file (optional)")
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return jobErrors.Usage("%v", err)
	})

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		return runJob(cmd, args, configPath, j, opts)
	}
	return cmd
}

func runJob(cmd *cobra.Command, args []string, configPath string, j jobCommand, opts Options) error {
	name := cmd.Name()

	cfg, err := config.Load(configPath)
	if err != nil {
		return jobErrors.Config(err)
	}
	logger.Init(cfg.Logging, name)

	if err := cfg.Validate(j.Needs); err != nil {
		return jobErrors.Config(err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return jobErrors.Config(err)
	}

	p, err := j.Plan(cmd, args, cfg, opts.Now().In(loc))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Run.Timeout)
	defer cancel()

	deps, err := opts.Open(ctx, cfg, j.Needs)
	if err != nil {
		return jobErrors.Remote("connect", err)
	}
	defer deps.Close()

	m := newMetrics(name, cfg)
	run := deps.Ledger.Start(name, p.rng)
	log.Info().Str("run_id", run.ID).Msg("job started")

	out, runErr := p.run(ctx, deps)

	deps.Ledger.Finish(run, out.rows, runErr)
	m.RowsWritten(out.rows)
	m.AlertsSent(out.alerts)
	pushMetrics(m, runErr)

	if runErr != nil {
		return runErr
	}
	log.Info().Str("run_id", run.ID).Int("rows", out.rows).Msg("job finished")
	return nil
}

// pushMetrics runs on its own deadline: the run context may already be
// cancelled when the run timed out or was interrupted.
func pushMetrics(m *metrics.JobMetrics, runErr error) {
	ctx, cancel := context.WithTimeout(context.Background(), metricsPushTimeout)
	defer cancel()
	if err := m.Push(ctx, runErr); err != nil {
		log.Warn().Err(err).Msg("failed to push job metrics")
	}
}

// Execute runs cmd against the process arguments and returns the exit
// status. Usage errors also print the command's usage.
func Execute(cmd *cobra.Command) int {
	err := cmd.Execute()
	if err == nil {
		return jobErrors.ExitOK
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	if jobErrors.IsUsage(err) {
		fmt.Fprint(cmd.ErrOrStderr(), cmd.UsageString())
	} else {
		log.Error().Err(err).Msg("job failed")
	}
	return jobErrors.ExitCode(err)
}
