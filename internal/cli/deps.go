package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"otpreport/internal/engine/otpstats"
	"otpreport/internal/platform/audit"
	"otpreport/internal/platform/config"
	"otpreport/internal/platform/database"
	"otpreport/internal/platform/mailer"
	"otpreport/internal/platform/metrics"
	"otpreport/internal/platform/sheets"
)

// Deps holds the clients of a single run. They are created after the
// configuration is validated and closed when the run ends.
type Deps struct {
	Events  otpstats.EventStore
	Sheet   sheets.Spreadsheet
	Sender  mailer.Sender
	Ledger  *audit.Ledger
	closers []func()
}

func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// OpenFunc builds the clients a job needs. Tests substitute fakes.
type OpenFunc func(ctx context.Context, cfg *config.Config, needs config.Needs) (*Deps, error)

// NowFunc is the clock used to decide "today".
type NowFunc func() time.Time

func openDeps(ctx context.Context, cfg *config.Config, needs config.Needs) (*Deps, error) {
	deps := &Deps{}

	ledger, err := audit.Open(cfg.Audit.Path)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.Audit.Path).Msg("run ledger disabled")
	} else if ledger != nil {
		deps.Ledger = ledger
		deps.closers = append(deps.closers, func() { ledger.Close() })
	}

	if needs&config.NeedMongo != 0 {
		loc, err := cfg.Location()
		if err != nil {
			deps.Close()
			return nil, err
		}
		client, err := database.Connect(ctx, cfg.Mongo)
		if err != nil {
			deps.Close()
			return nil, err
		}
		deps.closers = append(deps.closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := client.Disconnect(ctx); err != nil {
				log.Warn().Err(err).Msg("failed to disconnect from mongo")
			}
		})
		deps.Events = otpstats.NewRepository(database.Collection(client, cfg.Mongo), loc)
	}

	if needs&config.NeedSheets != 0 {
		client, err := sheets.NewClient(ctx, cfg.Sheets.CredentialsFile, cfg.Sheets.SpreadsheetID)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("open spreadsheet: %w", err)
		}
		deps.Sheet = client
		log.Info().Str("spreadsheet_id", cfg.Sheets.SpreadsheetID).Msg("connected to spreadsheet")
	}

	if needs&config.NeedSMTP != 0 {
		deps.Sender = mailer.NewSMTPSender(cfg.SMTP)
	}

	return deps, nil
}

func newMetrics(job string, cfg *config.Config) *metrics.JobMetrics {
	return metrics.NewJobMetrics(job, cfg.Metrics.PushgatewayURL)
}
