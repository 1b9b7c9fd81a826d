package main

import (
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/procurement-engine/internal/domain"
	"github.com/andresuchdata/procurement-engine/internal/pipeline"
	"github.com/andresuchdata/procurement-engine/internal/pipeline/procurement"
	"github.com/andresuchdata/procurement-engine/pkg/logger"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:   "migrate",
		Usage:  "Apply the database schema",
		Before: initApp,
		After:  closeApp,
		Action: func(c *cli.Context) error {
			app, err := appFrom(c)
			if err != nil {
				return err
			}
			if err := app.Migrate(c.Context); err != nil {
				return err
			}
			logger.Log.Info().Msg("schema up to date")
			return nil
		},
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:   "run",
		Usage:  "Generate supplier orders for one business date",
		Flags:  []cli.Flag{newDateFlag("date", "Business date", true)},
		Before: initApp,
		After:  closeApp,
		Action: func(c *cli.Context) error {
			date, err := dateArg(c, "date")
			if err != nil {
				return err
			}
			app, err := appFrom(c)
			if err != nil {
				return err
			}
			res, err := app.Worker.ProcessDate(c.Context, date)
			logSummary(res)
			return err
		},
	}
}

func backfillCommand() *cli.Command {
	return &cli.Command{
		Name:  "backfill",
		Usage: "Process every business date in a range, oldest first",
		Flags: []cli.Flag{
			newDateFlag("from", "First business date", true),
			newDateFlag("to", "Last business date", true),
		},
		Before: initApp,
		After:  closeApp,
		Action: func(c *cli.Context) error {
			from, err := dateArg(c, "from")
			if err != nil {
				return err
			}
			to, err := dateArg(c, "to")
			if err != nil {
				return err
			}
			app, err := appFrom(c)
			if err != nil {
				return err
			}

			outcomes, err := pipeline.NewOrchestrator(app.Worker).RunRange(c.Context, from, to)
			for _, o := range outcomes {
				event := logger.Log.Info()
				if o.Err != nil {
					event = logger.Log.Warn().Err(o.Err)
				}
				event.
					Str("business_date", o.BusinessDate.Format(domain.DateLayout)).
					Str("status", string(o.Status)).
					Msg("date processed")
			}
			return err
		},
	}
}

func retryCommand() *cli.Command {
	return &cli.Command{
		Name:   "retry",
		Usage:  "Rerun failed and incomplete dates that have attempts left",
		Before: initApp,
		After:  closeApp,
		Action: func(c *cli.Context) error {
			app, err := appFrom(c)
			if err != nil {
				return err
			}
			retried, err := app.Worker.RetryFailed(c.Context)
			logger.Log.Info().Int("retried", retried).Msg("retry finished")
			return err
		},
	}
}

func logSummary(res *procurement.Result) {
	if res == nil {
		return
	}
	s := res.Summary
	event := logger.Log.Info()
	if s.Status != domain.RunSucceeded {
		event = logger.Log.Warn().Str("failure_reason", s.FailureReason)
	}
	for currency, total := range s.TotalCostByCurrency {
		event = event.Str("total_"+currency, total.StringFixed(2))
	}
	event.
		Str("run_id", s.RunID).
		Str("business_date", s.BusinessDate.Format(domain.DateLayout)).
		Str("status", string(s.Status)).
		Int("raw_order_lines", s.RawOrderLines).
		Int("net_demand_rows", s.NetDemandRows).
		Int64("total_net_requirement", s.TotalNetRequirement).
		Int("supplier_order_lines", s.SupplierOrderLines).
		Int("exceptions", len(s.Exceptions)).
		Dur("duration", s.Duration()).
		Msg("run finished")
}
