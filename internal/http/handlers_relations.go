package http

import (
	"net/http"

	"boekhouding/internal/core"
	applog "boekhouding/internal/log"
)

func (s *Server) handleListRelations(w http.ResponseWriter, r *http.Request) {
	rels, err := s.deps.Relations.List(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, rels)
}

// handleGetRelation returns the relation together with its transactions.
func (s *Server) handleGetRelation(w http.ResponseWriter, r *http.Request) {
	detail, err := s.deps.Relations.Detail(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleCreateRelation(w http.ResponseWriter, r *http.Request) {
	var rel core.Relation
	if err := decodeJSON(r, &rel); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	created, err := s.deps.Relations.Create(r.Context(), rel)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	applog.FromContext(r.Context()).WithComponent(applog.ComponentRelation).InfoContext(r.Context(), "Relation created",
		applog.NewFields().WithRelation(created.ID, created.Number).ToSlice()...)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateRelation(w http.ResponseWriter, r *http.Request) {
	var rel core.Relation
	if err := decodeJSON(r, &rel); err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	rel.ID = r.PathValue("id")
	updated, err := s.deps.Relations.Update(r.Context(), rel)
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteRelation(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Relations.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
