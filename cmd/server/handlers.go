package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Simplici0/cee-quotes/internal/pricing"
	"github.com/Simplici0/cee-quotes/internal/quote"
)

func (s *server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req pricing.Request
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	req.ModuleCode = chi.URLParam(r, "code")

	preview, err := s.quotes.Simulate(r.Context(), tenantFrom(r), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (s *server) handlePreviewEdit(w http.ResponseWriter, r *http.Request) {
	var in quote.PreviewEdit
	if err := decodeJSON(r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	edit, err := in.Edit()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	preview, err := s.quotes.Reconcile(in.Preview, edit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (s *server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.quotes.GetSettings(r.Context(), tenantFrom(r), chi.URLParam(r, "code"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	settings := pricing.DefaultSettings()
	if err := decodeJSON(r, &settings); err != nil {
		writeServiceError(w, r, err)
		return
	}

	saved, err := s.quotes.PutSettings(r.Context(), tenantFrom(r), chi.URLParam(r, "code"), settings)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *server) handlePatchSettings(w http.ResponseWriter, r *http.Request) {
	patch, err := readBody(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	saved, err := s.quotes.PatchSettings(r.Context(), tenantFrom(r), chi.URLParam(r, "code"), patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *server) handleListValuations(w http.ResponseWriter, r *http.Request) {
	valuations, err := s.quotes.ListValuations(r.Context(), tenantFrom(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, valuations)
}

func (s *server) handleUpsertValuation(w http.ResponseWriter, r *http.Request) {
	var v pricing.Valuation
	if err := decodeJSON(r, &v); err != nil {
		writeServiceError(w, r, err)
		return
	}

	saved, err := s.quotes.UpsertValuation(r.Context(), tenantFrom(r), v)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.quotes.ListProducts(r.Context(), tenantFrom(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

type productInput struct {
	Brand         string   `json:"brand"`
	Reference     string   `json:"reference"`
	Category      string   `json:"category"`
	BuyingPriceHT float64  `json:"buying_price_ht"`
	SalePriceHT   float64  `json:"sale_price_ht"`
	TVARate       *float64 `json:"tva_rate"`
	Etas          *float64 `json:"etas"`
	PowerKW       *float64 `json:"power_kw"`
}

func (in productInput) product() pricing.Product {
	p := pricing.Product{
		Brand:         in.Brand,
		Reference:     in.Reference,
		Category:      in.Category,
		BuyingPriceHT: in.BuyingPriceHT,
		SalePriceHT:   in.SalePriceHT,
		TVARate:       pricing.DefaultTVARate,
		Etas:          in.Etas,
		PowerKW:       in.PowerKW,
	}
	if in.TVARate != nil {
		p.TVARate = *in.TVARate
	}
	return p
}

func (s *server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var in productInput
	if err := decodeJSON(r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}

	p, err := s.quotes.CreateProduct(r.Context(), tenantFrom(r), in.product())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *server) handleArchiveProduct(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := s.quotes.ArchiveProduct(r.Context(), tenantFrom(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleGetSizing(w http.ResponseWriter, r *http.Request) {
	folderID, err := idParam(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	sizing, err := s.quotes.GetSizing(r.Context(), tenantFrom(r), folderID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sizing)
}

func (s *server) handlePutSizing(w http.ResponseWriter, r *http.Request) {
	folderID, err := idParam(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	var sizing pricing.Sizing
	if err := decodeJSON(r, &sizing); err != nil {
		writeServiceError(w, r, err)
		return
	}
	sizing.FolderID = folderID

	saved, err := s.quotes.PutSizing(r.Context(), tenantFrom(r), sizing)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}
