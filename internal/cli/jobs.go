package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"otpreport/internal/engine/alert"
	"otpreport/internal/engine/export"
	"otpreport/internal/engine/otpstats"
	"otpreport/internal/engine/sheetsync"
	jobErrors "otpreport/internal/pkg/errors"
	"otpreport/internal/platform/config"
)

func NewDailySyncCommand(opts Options) *cobra.Command {
	return jobCommand{
		Use:   "daily-sync",
		Short: "Upsert yesterday's and today's OTP verification counts into the month tab",
		Needs: config.NeedMongo | config.NeedSheets,
		Plan:  planDailySync,
	}.Build(opts)
}

func planDailySync(_ *cobra.Command, args []string, _ *config.Config, now time.Time) (*plan, error) {
	if len(args) > 0 {
		return nil, jobErrors.Usage("daily-sync takes no arguments")
	}
	rng := sheetsync.DailyRange(now)

	return &plan{
		rng: &rng,
		run: func(ctx context.Context, deps *Deps) (outcome, error) {
			res, err := sheetsync.NewService(deps.Events, deps.Sheet).DailySync(ctx, rng)
			return outcome{rows: res.Rows()}, err
		},
	}, nil
}

func NewBackfillCommand(opts Options) *cobra.Command {
	cmd := jobCommand{
		Use:   "backfill",
		Short: "Append per-day OTP verification counts for a historical range, one tab per month",
		Long: `Walks the range month by month and appends every day that has events to
the month's tab. Rows are appended, never updated: running a backfill twice
over the same months duplicates their rows.`,
		Needs: config.NeedMongo | config.NeedSheets,
		Plan:  planBackfill,
	}.Build(opts)
	cmd.Flags().String("from", "", "first day, YYYY-MM-DD (default backfill.start)")
	cmd.Flags().String("to", "", "last day, YYYY-MM-DD (default backfill.end)")
	return cmd
}

func planBackfill(cmd *cobra.Command, args []string, cfg *config.Config, now time.Time) (*plan, error) {
	if len(args) > 0 {
		return nil, jobErrors.Usage("backfill takes no arguments, use --from and --to")
	}

	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	if from == "" {
		from = cfg.Backfill.Start
	}
	if to == "" {
		to = cfg.Backfill.End
	}

	start, err := time.ParseInLocation(otpstats.DateLayout, from, now.Location())
	if err != nil {
		return nil, jobErrors.Usage("invalid start date %q: use YYYY-MM-DD", from)
	}
	end, err := time.ParseInLocation(otpstats.DateLayout, to, now.Location())
	if err != nil {
		return nil, jobErrors.Usage("invalid end date %q: use YYYY-MM-DD", to)
	}
	rng, err := otpstats.NewDateRange(start, end)
	if err != nil {
		return nil, jobErrors.Usage("%v", err)
	}

	// The ledger records what is written, which runs to the end of the last month.
	covered := sheetsync.BackfillCoverage(rng)

	return &plan{
		rng: &covered,
		run: func(ctx context.Context, deps *Deps) (outcome, error) {
			previous, err := deps.Ledger.OverlappingSuccess(cmd.Name(), covered)
			if err != nil {
				log.Warn().Err(err).Msg("failed to check earlier backfills")
			}
			for _, p := range previous {
				log.Warn().
					Str("previous_run", p.ID).
					Str("previous_range", p.RangeStart+".."+p.RangeEnd).
					Msg("an earlier backfill covered part of this range, rows will be duplicated")
			}

			res, err := sheetsync.NewService(deps.Events, deps.Sheet).Backfill(ctx, rng)
			return outcome{rows: res.Rows()}, err
		},
	}, nil
}

func NewExportUnverifiedCommand(opts Options) *cobra.Command {
	return jobCommand{
		Use:   "export-unverified [DD/MM/YYYY [DD/MM/YYYY]]",
		Short: "Export unverified OTP records for a day or date range to CSV",
		Long: `Without arguments exports today. One date exports that day; two dates
export the inclusive range between them.`,
		Needs: config.NeedMongo,
		Plan:  planExport,
	}.Build(opts)
}

func planExport(cmd *cobra.Command, args []string, cfg *config.Config, now time.Time) (*plan, error) {
	rng, err := export.ParseArgs(args, now, now.Location())
	if err != nil {
		return nil, err
	}

	return &plan{
		rng: &rng,
		run: func(ctx context.Context, deps *Deps) (outcome, error) {
			path, n, err := export.NewExporter(deps.Events, cfg.Export.Dir).Export(ctx, rng)
			if err != nil {
				return outcome{}, err
			}
			if path == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "No unverified users found for %s.\n", rng)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "CSV file saved: %s\n", path)
			}
			return outcome{rows: n}, nil
		},
	}, nil
}

func NewAlertCommand(opts Options) *cobra.Command {
	return jobCommand{
		Use:   "alert",
		Short: "Email the team when today's or yesterday's unverified percentage is over the threshold",
		Needs: config.NeedSheets | config.NeedSMTP,
		Plan:  planAlert,
	}.Build(opts)
}

func planAlert(_ *cobra.Command, args []string, cfg *config.Config, now time.Time) (*plan, error) {
	if len(args) > 0 {
		return nil, jobErrors.Usage("alert takes no arguments")
	}

	return &plan{
		run: func(ctx context.Context, deps *Deps) (outcome, error) {
			n := alert.NewNotifier(deps.Sheet, deps.Sender, cfg.Alert.Threshold, cfg.SMTP.Recipient, cfg.Sheets.Link)
			breaches, err := n.Run(ctx, now)
			if err != nil {
				return outcome{}, err
			}
			sent := 0
			if len(breaches) > 0 {
				sent = 1
			}
			return outcome{rows: len(breaches), alerts: sent}, nil
		},
	}, nil
}
