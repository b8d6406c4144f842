package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/banksampah-system/internal/waste"
)

type estimateRequest struct {
	WasteItems []wasteItemRequest `json:"wasteItems"`
}

type estimateResponse struct {
	Items  []waste.Estimate `json:"items"`
	Totals waste.Totals     `json:"totals"`
}

// Catalog возвращает каталог видов отходов с ценами и баллами за килограмм.
// С параметром flat=1 виды возвращаются одним списком с данными категории.
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("flat") == "1" {
		writeJSON(w, http.StatusOK, waste.AllTypes())
		return
	}
	writeJSON(w, http.StatusOK, waste.Catalog())
}

// Estimate рассчитывает предварительное вознаграждение для формы заявки.
func (h *Handler) Estimate(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.service.EstimateItems(lineItems(req.WasteItems))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, estimateResponse{Items: res.Items, Totals: res.Totals})
}

// Provinces возвращает список провинций.
func (h *Handler) Provinces(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Provinces(r.Context()))
}

// Regencies возвращает города и округа провинции.
func (h *Handler) Regencies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Regencies(r.Context(), chi.URLParam(r, "provinceID")))
}

// Districts возвращает районы города или округа.
func (h *Handler) Districts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Districts(r.Context(), chi.URLParam(r, "regencyID")))
}
