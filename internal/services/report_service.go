package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"boekhouding/internal/cache"
	"boekhouding/internal/core"
	"boekhouding/internal/report"
	"boekhouding/internal/storage"
)

const (
	minYear = 1900
	maxYear = 9999
)

// ReportCaches groups the caches used by ReportService. Nil caches disable
// caching for that report.
type ReportCaches struct {
	Vat           cache.Cache[report.QuarterlyVatReport]
	ProfitAndLoss cache.Cache[report.ProfitAndLoss]
}

// ReportService fetches transactions from the store and runs them through
// the aggregator. The dashboard is always computed fresh because its
// recent-activity list is not bound to a period.
//
// A report is only cached when no Invalidate ran while it was being built.
// With a shared Redis cache another process can still invalidate in that
// window; such an entry lives until the cache TTL expires.
type ReportService struct {
	store  storage.Store
	caches ReportCaches

	mu         sync.Mutex // orders cache fills against Invalidate
	generation uint64
}

func NewReportService(store storage.Store, caches ReportCaches) *ReportService {
	return &ReportService{store: store, caches: caches}
}

// ValidateYear rejects years outside the supported range.
func ValidateYear(year int) error {
	if year < minYear || year > maxYear {
		return core.NewValidationError("year", fmt.Sprintf("must be between %d and %d", minYear, maxYear))
	}
	return nil
}

// Dashboard returns the P&L summary of year plus the most recent
// transactions. A zero year means the configured fiscal year.
func (s *ReportService) Dashboard(ctx context.Context, year int) (report.Dashboard, error) {
	if year == 0 {
		settings, err := s.store.GetOrCreateSettings(ctx)
		if err != nil {
			return report.Dashboard{}, fmt.Errorf("load settings: %w", err)
		}
		year = settings.FiscalYear
	}
	if err := ValidateYear(year); err != nil {
		return report.Dashboard{}, err
	}

	var (
		yearTxs   []core.Transaction
		recentTxs []core.Transaction
		relations []core.Relation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		yearTxs, err = s.store.FindTransactions(gctx, storage.TransactionFilter{}.ForYear(year))
		return err
	})
	g.Go(func() error {
		var err error
		recentTxs, err = s.store.FindTransactions(gctx, storage.TransactionFilter{Limit: report.DefaultRecentLimit})
		return err
	})
	g.Go(func() error {
		var err error
		relations, err = s.store.FindRelations(gctx, storage.RelationFilter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return report.Dashboard{}, fmt.Errorf("load dashboard data: %w", err)
	}

	start, end := report.YearRange(year)
	return report.Dashboard{
		Year:    year,
		Summary: report.SummarizePeriod(yearTxs, start, end),
		Recent:  report.RecentTransactions(recentTxs, relations, report.DefaultRecentLimit),
	}, nil
}

// QuarterlyVat returns the VAT report for one quarter. The quarter is
// validated before anything is fetched.
func (s *ReportService) QuarterlyVat(ctx context.Context, year, quarter int) (report.QuarterlyVatReport, error) {
	return s.quarterlyVat(ctx, year, quarter, true)
}

// RebuildQuarterlyVat builds the report from the store without reading the
// cache, then refreshes the cached copy.
func (s *ReportService) RebuildQuarterlyVat(ctx context.Context, year, quarter int) (report.QuarterlyVatReport, error) {
	return s.quarterlyVat(ctx, year, quarter, false)
}

func (s *ReportService) quarterlyVat(ctx context.Context, year, quarter int, useCache bool) (report.QuarterlyVatReport, error) {
	if err := ValidateYear(year); err != nil {
		return report.QuarterlyVatReport{}, err
	}
	start, end, err := report.QuarterRange(year, quarter)
	if err != nil {
		return report.QuarterlyVatReport{}, err
	}

	key := vatKey(year, quarter)
	if useCache && s.caches.Vat != nil {
		if cached, ok := s.caches.Vat.Get(key); ok {
			return cached, nil
		}
	}

	gen := s.currentGeneration()
	txs, err := s.store.FindTransactions(ctx, storage.TransactionFilter{From: start, To: end})
	if err != nil {
		return report.QuarterlyVatReport{}, fmt.Errorf("load transactions for %s: %w", key, err)
	}
	r, err := report.BuildQuarterlyVatReport(txs, year, quarter)
	if err != nil {
		return report.QuarterlyVatReport{}, err
	}

	if s.caches.Vat != nil {
		s.fill(gen, func() { s.caches.Vat.Set(key, r) })
	}
	return r, nil
}

// ProfitAndLoss returns the yearly P&L with its category breakdown.
func (s *ReportService) ProfitAndLoss(ctx context.Context, year int) (report.ProfitAndLoss, error) {
	if err := ValidateYear(year); err != nil {
		return report.ProfitAndLoss{}, err
	}

	key := plKey(year)
	if s.caches.ProfitAndLoss != nil {
		if cached, ok := s.caches.ProfitAndLoss.Get(key); ok {
			return cached, nil
		}
	}

	gen := s.currentGeneration()
	txs, err := s.store.FindTransactions(ctx, storage.TransactionFilter{}.ForYear(year))
	if err != nil {
		return report.ProfitAndLoss{}, fmt.Errorf("load transactions for %d: %w", year, err)
	}
	pl := report.BuildProfitAndLoss(txs, year)

	if s.caches.ProfitAndLoss != nil {
		s.fill(gen, func() { s.caches.ProfitAndLoss.Set(key, pl) })
	}
	return pl, nil
}

// Invalidate drops every cached report covering one of dates.
func (s *ReportService) Invalidate(ctx context.Context, dates ...core.Date) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	for _, d := range dates {
		if d.IsZero() {
			continue
		}
		if s.caches.Vat != nil {
			s.caches.Vat.Delete(vatKey(d.Year(), d.Quarter()))
		}
		if s.caches.ProfitAndLoss != nil {
			s.caches.ProfitAndLoss.Delete(plKey(d.Year()))
		}
		slog.DebugContext(ctx, "Report cache invalidated",
			"period", report.QuarterLabel(d.Year(), d.Quarter()))
	}
}

func (s *ReportService) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// fill runs set unless an Invalidate happened since gen was read.
func (s *ReportService) fill(gen uint64, set func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation == gen {
		set()
	}
}

func vatKey(year, quarter int) string {
	return "vat:" + report.QuarterLabel(year, quarter)
}

func plKey(year int) string {
	return "pl:" + strconv.Itoa(year)
}
