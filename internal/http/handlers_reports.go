package http

import (
	"net/http"
	"strings"

	"boekhouding/internal/core"
	applog "boekhouding/internal/log"
	"boekhouding/internal/report"
	"boekhouding/internal/services"
)

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.deps.Settings.Get(r.Context())
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch services.SettingsPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	updated, err := s.deps.Settings.Update(r.Context(), patch)
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleDashboard serves the year summary; without ?year= the fiscal year
// from the settings is used.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	year, err := queryInt(r.URL.Query(), "year")
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	d, err := s.deps.Reports.Dashboard(r.Context(), year)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleVatReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if strings.TrimSpace(q.Get("year")) == "" || strings.TrimSpace(q.Get("quarter")) == "" {
		writeError(w, r, applog.OpRead, core.NewValidationError("", "year and quarter are required"))
		return
	}
	year, err := queryInt(q, "year")
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	quarter, err := queryInt(q, "quarter")
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}

	vat, err := s.deps.Reports.QuarterlyVat(r.Context(), year, quarter)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, vatReportResponse{
		QuarterlyVatReport: vat,
		Label:              vat.Label(),
		Payable:            vat.Payable(),
	})
}

// vatReportResponse adds the derived label and payable flag to the report.
type vatReportResponse struct {
	report.QuarterlyVatReport
	Label   string `json:"label"`
	Payable bool   `json:"payable"`
}

// handleProfitAndLoss serves the yearly P&L; ?year= defaults to the fiscal
// year.
func (s *Server) handleProfitAndLoss(w http.ResponseWriter, r *http.Request) {
	year, err := queryInt(r.URL.Query(), "year")
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	if year == 0 {
		settings, err := s.deps.Settings.Get(r.Context())
		if err != nil {
			writeError(w, r, applog.OpRead, err)
			return
		}
		year = settings.FiscalYear
	}
	pl, err := s.deps.Reports.ProfitAndLoss(r.Context(), year)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, pl)
}
