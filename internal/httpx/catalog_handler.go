package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medstok/go-pharmacy-orders/internal/catalog"
)

type CatalogHandler struct {
	Catalog catalog.Store
}

type createMedicineReq struct {
	Name       string `json:"name"`
	Brand      string `json:"brand"`
	DosageForm string `json:"dosage_form"`
}

func (h *CatalogHandler) Register(r *chi.Mux) {
	r.Group(func(r chi.Router) {
		r.Use(WithPrincipal)
		r.Post("/medicines", h.createMedicine)
		r.Get("/medicines", h.resolveMedicine)
	})
}

func (h *CatalogHandler) createMedicine(w http.ResponseWriter, r *http.Request) {
	if !requireRole(w, r, RoleAdmin) {
		return
	}
	var req createMedicineReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{"invalid json", "validation"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errBody{"name is required", "validation"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	m := catalog.Medicine{
		ID:         uuid.NewString(),
		Name:       req.Name,
		Brand:      req.Brand,
		DosageForm: req.DosageForm,
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.Catalog.Create(ctx, m); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *CatalogHandler) resolveMedicine(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errBody{"name is required", "validation"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	m, err := h.Catalog.Resolve(ctx, name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
