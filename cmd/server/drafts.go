package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Simplici0/cee-quotes/internal/quote"
)

func (s *server) handleListDrafts(w http.ResponseWriter, r *http.Request) {
	folderID, err := idParam(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	drafts, err := s.quotes.ListDrafts(r.Context(), tenantFrom(r), folderID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, drafts)
}

func (s *server) handleCreateDraft(w http.ResponseWriter, r *http.Request) {
	var in quote.DraftInput
	if err := decodeJSON(r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}

	d, err := s.quotes.CreateDraft(r.Context(), tenantFrom(r), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	d, err := s.quotes.GetDraft(r.Context(), tenantFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *server) handleUpsertDraft(w http.ResponseWriter, r *http.Request) {
	var in quote.DraftInput
	if err := decodeJSON(r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}

	d, err := s.quotes.UpsertDraft(r.Context(), tenantFrom(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *server) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	var patch quote.DraftPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeServiceError(w, r, err)
		return
	}

	d, err := s.quotes.UpdateDraft(r.Context(), tenantFrom(r), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *server) handleDeleteDraft(w http.ResponseWriter, r *http.Request) {
	if err := s.quotes.DeleteDraft(r.Context(), tenantFrom(r), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type simulateDraftInput struct {
	TargetRAC *float64 `json:"target_rac"`
}

func (s *server) handleSimulateDraft(w http.ResponseWriter, r *http.Request) {
	var in simulateDraftInput
	if err := decodeJSON(r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}

	d, err := s.quotes.SimulateDraft(r.Context(), tenantFrom(r), chi.URLParam(r, "id"), in.TargetRAC)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *server) handleEditDraftLine(w http.ResponseWriter, r *http.Request) {
	var in quote.EditRequest
	if err := decodeJSON(r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	edit, err := in.Edit()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	d, err := s.quotes.EditDraftLine(r.Context(), tenantFrom(r), chi.URLParam(r, "id"), edit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *server) handleDraftText(w http.ResponseWriter, r *http.Request) {
	text, err := s.quotes.DraftText(r.Context(), tenantFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}
