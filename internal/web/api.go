package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/tabula/internal/pipeline"
	"github.com/mesh-intelligence/tabula/internal/viewstate"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

// viewResponse is a snapshot with the view name and the source error text.
type viewResponse struct {
	Name string `json:"name"`
	viewstate.Snapshot[types.Record]
	SourceError string `json:"source_error,omitempty"`
}

// viewPatch is the body of PATCH /api/views/{name}. Absent fields are left
// unchanged. Changes apply in the order tab, query, filters, page size,
// sort, page, and either all of them apply or none does.
type viewPatch struct {
	Tab          *string             `json:"tab"`
	Query        *string             `json:"query"`
	ClearFilters bool                `json:"clear_filters"`
	Filters      map[string][]string `json:"filters"`
	PageSize     *int                `json:"page_size"`
	Sort         *string             `json:"sort"`
	Direction    *string             `json:"direction"`
	Page         *int                `json:"page"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleViewList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"views": s.viewNames()})
}

func (s *Server) handleViewGet(w http.ResponseWriter, r *http.Request) {
	name, tbl, ok := s.view(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, respond(name, tbl))
}

func (s *Server) handleViewPatch(w http.ResponseWriter, r *http.Request) {
	name, tbl, ok := s.view(w, r)
	if !ok {
		return
	}
	var p viewPatch
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := apply(tbl, p); err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, respond(name, tbl))
}

func (s *Server) handleSelectionToggle(w http.ResponseWriter, r *http.Request) {
	name, tbl, ok := s.view(w, r)
	if !ok {
		return
	}
	tbl.Toggle(chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, respond(name, tbl))
}

func (s *Server) handleSelectAll(w http.ResponseWriter, r *http.Request) {
	name, tbl, ok := s.view(w, r)
	if !ok {
		return
	}
	checked := true
	if v := r.URL.Query().Get("checked"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "checked must be true or false")
			return
		}
		checked = b
	}
	tbl.SelectAll(checked)
	writeJSON(w, http.StatusOK, respond(name, tbl))
}

func (s *Server) handleSelectionClear(w http.ResponseWriter, r *http.Request) {
	name, tbl, ok := s.view(w, r)
	if !ok {
		return
	}
	tbl.ClearSelection()
	writeJSON(w, http.StatusOK, respond(name, tbl))
}

// view looks up the {name} route parameter and writes a 404 when absent.
func (s *Server) view(w http.ResponseWriter, r *http.Request) (string, *viewstate.Table[types.Record], bool) {
	name := chi.URLParam(r, "name")
	tbl, ok := s.views[name]
	if !ok {
		writeError(w, http.StatusNotFound, types.ErrViewNotFound.Error()+": "+name)
		return "", nil, false
	}
	return name, tbl, true
}

// apply makes the whole patch as one change; a rejected patch leaves the
// view as it was.
func apply(tbl *viewstate.Table[types.Record], p viewPatch) error {
	c := viewstate.Change{
		Tab:          p.Tab,
		Query:        p.Query,
		ClearFilters: p.ClearFilters,
		Filters:      p.Filters,
		PageSize:     p.PageSize,
		SortField:    p.Sort,
		Page:         p.Page,
	}
	if p.Direction != nil {
		dir := pipeline.ParseDirection(*p.Direction)
		c.Direction = &dir
	}
	return tbl.Apply(c)
}

func respond(name string, tbl *viewstate.Table[types.Record]) viewResponse {
	snap := tbl.Snapshot()
	resp := viewResponse{Name: name, Snapshot: snap}
	if snap.Err != nil {
		resp.SourceError = snap.Err.Error()
	}
	return resp
}

func (s *Server) writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, types.ErrViewNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, types.ErrInvalidPageSize),
		errors.Is(err, types.ErrUnknownFilterField),
		errors.Is(err, types.ErrInvalidFilter):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
