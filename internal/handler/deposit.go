package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/banksampah-system/internal/model"
	"github.com/mmeshcher/banksampah-system/internal/service"
)

type wasteItemRequest struct {
	CategoryID string  `json:"categoryId"`
	TypeID     string  `json:"typeId"`
	WeightKg   float64 `json:"weightKg"`
}

func lineItems(items []wasteItemRequest) []model.WasteLineItem {
	res := make([]model.WasteLineItem, 0, len(items))
	for _, it := range items {
		res = append(res, model.WasteLineItem{CategoryID: it.CategoryID, TypeID: it.TypeID, WeightKg: it.WeightKg})
	}
	return res
}

type submitDepositRequest struct {
	AffiliationID  string             `json:"affiliationId"`
	WasteItems     []wasteItemRequest `json:"wasteItems"`
	PickupLocation model.Location     `json:"pickupLocation"`
	PickupRegion   model.Region       `json:"pickupRegion"`
}

type progressRequest struct {
	Step string `json:"progressStep" validate:"required"`
}

type rewardRequest struct {
	RewardPoints int64 `json:"rewardPoints"`
	RewardMoney  int64 `json:"rewardMoney"`
}

type finalizeResponse struct {
	Deposit depositResponse `json:"deposit"`
	Reward  model.Reward    `json:"reward"`
}

// SubmitDeposit создаёт заявку на вывоз отходов.
func (h *Handler) SubmitDeposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req submitDepositRequest
	if !decode(w, r, &req) {
		return
	}

	d, err := h.service.SubmitDeposit(r.Context(), userID, service.DepositInput{
		AffiliationID:  req.AffiliationID,
		Items:          lineItems(req.WasteItems),
		PickupLocation: req.PickupLocation,
		PickupRegion:   req.PickupRegion,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newDepositResponse(d))
}

// ListDeposits возвращает историю пользователя или панель менеджера с фильтром по статусу.
func (h *Handler) ListDeposits(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	list, err := h.service.ListDeposits(r.Context(), userID, model.DepositStatus(r.URL.Query().Get("status")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newDepositListResponse(list))
}

// GetDeposit возвращает заявку с итоговым вознаграждением и контактом второй стороны.
func (h *Handler) GetDeposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	detail, err := h.service.GetDepositDetail(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newDepositDetailResponse(detail))
}

// AcceptDeposit принимает заявку в работу.
func (h *Handler) AcceptDeposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	d, err := h.service.AcceptDeposit(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newDepositResponse(d))
}

// AdvanceProgress меняет шаг прогресса заявки.
func (h *Handler) AdvanceProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req progressRequest
	if !decode(w, r, &req) {
		return
	}

	d, err := h.service.AdvanceProgress(r.Context(), userID, chi.URLParam(r, "id"), model.ProgressStep(req.Step))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newDepositResponse(d))
}

// SetReward сохраняет вознаграждение, заданное менеджером.
func (h *Handler) SetReward(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req rewardRequest
	if !decode(w, r, &req) {
		return
	}

	d, err := h.service.SetReward(r.Context(), userID, chi.URLParam(r, "id"), req.RewardPoints, req.RewardMoney)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newDepositResponse(d))
}

// FinalizeDeposit подтверждает получение вознаграждения владельцем заявки.
func (h *Handler) FinalizeDeposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	d, reward, err := h.service.FinalizeDeposit(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, finalizeResponse{Deposit: newDepositResponse(d), Reward: reward})
}
