package http

import (
	"net/http"
	"strings"

	"boekhouding/internal/core"
	applog "boekhouding/internal/log"
	"boekhouding/internal/services"
	"boekhouding/internal/storage"
)

// transactionFilter builds the store filter from ?year=&from=&to=&type=
// &relationId=&limit=. year and from/to are mutually exclusive.
func transactionFilter(r *http.Request) (storage.TransactionFilter, error) {
	q := r.URL.Query()
	var f storage.TransactionFilter

	year, err := queryInt(q, "year")
	if err != nil {
		return f, err
	}
	if f.From, err = queryDate(q, "from"); err != nil {
		return f, err
	}
	if f.To, err = queryDate(q, "to"); err != nil {
		return f, err
	}
	if year != 0 {
		if !f.From.IsZero() || !f.To.IsZero() {
			return f, core.NewValidationError("year", "cannot be combined with from/to")
		}
		if err := services.ValidateYear(year); err != nil {
			return f, err
		}
		f = f.ForYear(year)
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From.Time) {
		return f, core.NewValidationError("to", "must not be before from")
	}

	if t := strings.TrimSpace(q.Get("type")); t != "" {
		if f.Type, err = core.ParseTransactionType(t); err != nil {
			return f, err
		}
	}
	f.RelationID = strings.TrimSpace(q.Get("relationId"))

	if f.Limit, err = queryInt(q, "limit"); err != nil {
		return f, err
	}
	if f.Limit < 0 {
		return f, core.NewValidationError("limit", "must not be negative")
	}
	return f, nil
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := transactionFilter(r)
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	views, err := s.deps.Transactions.List(r.Context(), f)
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.deps.Transactions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var tx core.Transaction
	if err := decodeJSON(r, &tx); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	created, err := s.deps.Transactions.Create(r.Context(), tx)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	s.logTransaction(r, applog.OpCreate, created)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var tx core.Transaction
	if err := decodeJSON(r, &tx); err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	tx.ID = r.PathValue("id")
	updated, err := s.deps.Transactions.Update(r.Context(), tx)
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	s.logTransaction(r, applog.OpUpdate, updated)
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.deps.Transactions.Delete(r.Context(), id); err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Transaction deleted",
		applog.FieldTransactionID, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) logTransaction(r *http.Request, op string, tx core.Transaction) {
	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogTransactionChanged(r.Context(), op, tx.ID, string(tx.Type), tx.AmountExclVat.Cents, string(tx.VatRate))
}
