package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/banksampah-system/internal/model"
	"github.com/mmeshcher/banksampah-system/internal/service"
)

type affiliationRequest struct {
	Name     string         `json:"name" validate:"required"`
	Wilayah  regionRequest  `json:"wilayah"`
	Location model.Location `json:"location"`
	AdminKey string         `json:"adminKey"`
}

func (req affiliationRequest) input() service.AffiliationInput {
	return service.AffiliationInput{
		Name:     req.Name,
		Region:   req.Wilayah.model(),
		Location: req.Location,
		AdminKey: req.AdminKey,
	}
}

type joinRequest struct {
	AffiliationID string `json:"affiliationId" validate:"required"`
}

// ListAffiliations возвращает все банки отходов.
func (h *Handler) ListAffiliations(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListAffiliations(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]affiliationResponse, 0, len(list))
	for i := range list {
		resp = append(resp, newAffiliationResponse(&list[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetAffiliation возвращает банк отходов по идентификатору.
func (h *Handler) GetAffiliation(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.GetAffiliation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAffiliationResponse(a))
}

// CreateAffiliation создаёт банк отходов от имени менеджера.
func (h *Handler) CreateAffiliation(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req affiliationRequest
	if !decode(w, r, &req) {
		return
	}

	a, err := h.service.CreateAffiliation(r.Context(), userID, req.input())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newAffiliationResponse(a))
}

// UpdateAffiliation изменяет данные банка отходов.
func (h *Handler) UpdateAffiliation(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req affiliationRequest
	if !decode(w, r, &req) {
		return
	}

	a, err := h.service.UpdateAffiliation(r.Context(), userID, chi.URLParam(r, "id"), req.input())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAffiliationResponse(a))
}

// JoinAffiliation добавляет текущего пользователя в банк отходов.
func (h *Handler) JoinAffiliation(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req joinRequest
	if !decode(w, r, &req) {
		return
	}

	a, err := h.service.JoinAffiliation(r.Context(), userID, req.AffiliationID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAffiliationResponse(a))
}

// LeaveAffiliation исключает текущего пользователя из его банка отходов.
func (h *Handler) LeaveAffiliation(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	if err := h.service.LeaveAffiliation(r.Context(), userID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
