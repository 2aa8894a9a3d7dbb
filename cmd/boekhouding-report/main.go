// Command boekhouding-report prints the bookkeeping reports to the terminal
// and pushes VAT reports to the configured spreadsheet.
//
//	boekhouding-report summary [-year 2024]
//	boekhouding-report vat -year 2024 -quarter 1
//	boekhouding-report pl [-year 2024]
//	boekhouding-report transactions [-year 2024] [-type INCOME] [-relation ID] [-limit 20]
//	boekhouding-report chart -kind expense -out kosten.png [-year 2024]
//	boekhouding-report export-vat -year 2024 [-quarter 1]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"boekhouding/internal/backend"
	"boekhouding/internal/cli"
	"boekhouding/internal/core"
	applog "boekhouding/internal/log"
	"boekhouding/internal/render"
	"boekhouding/internal/services"
	"boekhouding/internal/sheets"
	"boekhouding/internal/storage"
	"boekhouding/internal/worker"
)

var errUsage = errors.New(`usage: boekhouding-report <summary|vat|pl|transactions|chart|export-vat> [flags]`)

type app struct {
	transactions *services.TransactionService
	reports      *services.ReportService
	settings     *services.SettingsService
	exports      *worker.ReportWorker
	out          io.Writer
}

func newApp(store storage.Store, caches services.ReportCaches, exporter sheets.VatReportExporter, out io.Writer) *app {
	reports := services.NewReportService(store, caches)
	return &app{
		transactions: services.NewTransactionService(store, reports, nil),
		reports:      reports,
		settings:     services.NewSettingsService(store),
		exports:      worker.NewReportWorker(reports, exporter, store),
		out:          out,
	}
}

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentCLI, os.Stderr)

	cfg, err := cli.LoadAndValidateConfig(logger)
	if err != nil {
		os.Exit(1)
	}
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}

	ctx := context.Background()
	factory := backend.NewFactory(logger)
	b, err := factory.CreateBackend(ctx, backendCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err)
	}
	defer b.Close()

	exporter, err := factory.CreateExporter(ctx, backendCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize exporter", err)
	}

	a := newApp(b.Store, b.Caches, exporter, os.Stdout)
	if err := a.run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		b.Close()
		os.Exit(2)
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	year := fs.Int("year", 0, "year to report on (default: fiscal year)")

	switch cmd {
	case "summary":
		if err := fs.Parse(rest); err != nil {
			return err
		}
		d, err := a.reports.Dashboard(ctx, *year)
		if err != nil {
			return err
		}
		render.SummaryTable(a.out, d)
		if len(d.Recent) > 0 {
			fmt.Fprintln(a.out)
			render.TransactionsTable(a.out, d.Recent)
		}
		return nil

	case "vat":
		quarter := fs.Int("quarter", 0, "quarter 1-4")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if *year == 0 || *quarter == 0 {
			return core.NewValidationError("", "year and quarter are required")
		}
		r, err := a.reports.QuarterlyVat(ctx, *year, *quarter)
		if err != nil {
			return err
		}
		render.VatReportTable(a.out, r)
		return nil

	case "pl":
		if err := fs.Parse(rest); err != nil {
			return err
		}
		y, err := a.yearOrFiscal(ctx, *year)
		if err != nil {
			return err
		}
		pl, err := a.reports.ProfitAndLoss(ctx, y)
		if err != nil {
			return err
		}
		render.ProfitAndLossTable(a.out, pl)
		return nil

	case "transactions":
		typ := fs.String("type", "", "INCOME, EXPENSE or PASSIVA")
		relation := fs.String("relation", "", "relation ID")
		limit := fs.Int("limit", 0, "maximum number of rows")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		f := storage.TransactionFilter{RelationID: *relation, Limit: *limit}
		if *year != 0 {
			if err := services.ValidateYear(*year); err != nil {
				return err
			}
			f = f.ForYear(*year)
		}
		if *typ != "" {
			t, err := core.ParseTransactionType(*typ)
			if err != nil {
				return err
			}
			f.Type = t
		}
		views, err := a.transactions.List(ctx, f)
		if err != nil {
			return err
		}
		render.TransactionsTable(a.out, views)
		return nil

	case "chart":
		kind := fs.String("kind", string(render.ChartExpense), "income or expense")
		out := fs.String("out", "", "PNG file to write")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if *out == "" {
			return core.NewValidationError("out", "is required")
		}
		k, err := render.ParseChartKind(*kind)
		if err != nil {
			return err
		}
		y, err := a.yearOrFiscal(ctx, *year)
		if err != nil {
			return err
		}
		pl, err := a.reports.ProfitAndLoss(ctx, y)
		if err != nil {
			return err
		}
		return writeChart(*out, func(w io.Writer) error { return render.CategoryChart(w, pl, k) })

	case "export-vat":
		quarter := fs.Int("quarter", 0, "quarter 1-4 (default: every started quarter)")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		y, err := a.yearOrFiscal(ctx, *year)
		if err != nil {
			return err
		}
		if *quarter == 0 {
			if err := a.exports.ExportYear(ctx, y); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Exported VAT reports for %d\n", y)
			return nil
		}
		ref, err := a.exports.ExportQuarter(ctx, y, *quarter)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Exported %d-Q%d to %s\n", y, *quarter, ref)
		return nil

	default:
		return fmt.Errorf("unknown command %q\n%w", cmd, errUsage)
	}
}

func (a *app) yearOrFiscal(ctx context.Context, year int) (int, error) {
	if year != 0 {
		return year, nil
	}
	s, err := a.settings.Get(ctx)
	if err != nil {
		return 0, err
	}
	return s.FiscalYear, nil
}

// writeChart renders into path, removing the file again on failure.
func writeChart(path string, draw func(io.Writer) error) error {
	if !strings.HasSuffix(strings.ToLower(path), ".png") {
		return core.NewValidationError("out", "must end in .png")
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := draw(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
