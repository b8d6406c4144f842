// Package handler содержит HTTP-обработчики API сервиса банка отходов.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/banksampah-system/internal/lifecycle"
	"github.com/mmeshcher/banksampah-system/internal/metrics"
	"github.com/mmeshcher/banksampah-system/internal/middleware"
	"github.com/mmeshcher/banksampah-system/internal/model"
	"github.com/mmeshcher/banksampah-system/internal/service"
	"github.com/mmeshcher/banksampah-system/internal/validation"
	"github.com/mmeshcher/banksampah-system/internal/wilayah"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Register(ctx context.Context, in service.Registration) (*model.User, error)
	Authenticate(ctx context.Context, email, password string) (*model.User, error)
	SignInWithGoogle(ctx context.Context, idToken string) (*model.User, error)
	SetPassword(ctx context.Context, userID, password string) error
	GetAccount(ctx context.Context, userID string) (*model.User, error)
	UpdateProfile(ctx context.Context, userID string, p service.Profile) (*model.User, error)

	CreateAffiliation(ctx context.Context, userID string, in service.AffiliationInput) (*model.Affiliation, error)
	JoinAffiliation(ctx context.Context, userID, affiliationID string) (*model.Affiliation, error)
	LeaveAffiliation(ctx context.Context, userID string) error
	UpdateAffiliation(ctx context.Context, userID, affiliationID string, in service.AffiliationInput) (*model.Affiliation, error)
	ListAffiliations(ctx context.Context) ([]model.Affiliation, error)
	GetAffiliation(ctx context.Context, affiliationID string) (*model.Affiliation, error)

	EstimateItems(items []model.WasteLineItem) (service.Estimation, error)
	SubmitDeposit(ctx context.Context, userID string, in service.DepositInput) (*model.Deposit, error)
	AcceptDeposit(ctx context.Context, userID, depositID string) (*model.Deposit, error)
	AdvanceProgress(ctx context.Context, userID, depositID string, step model.ProgressStep) (*model.Deposit, error)
	SetReward(ctx context.Context, userID, depositID string, points, money int64) (*model.Deposit, error)
	FinalizeDeposit(ctx context.Context, userID, depositID string) (*model.Deposit, model.Reward, error)
	GetDepositDetail(ctx context.Context, userID, depositID string) (*service.DepositDetail, error)
	ListDeposits(ctx context.Context, userID string, status model.DepositStatus) (*service.DepositList, error)
	WatchDeposits(ctx context.Context, userID string, status model.DepositStatus) (<-chan service.DepositList, error)

	Provinces(ctx context.Context) []wilayah.Region
	Regencies(ctx context.Context, provinceID string) []wilayah.Region
	Districts(ctx context.Context, regencyID string) []wilayah.Region
}

// Handler реализует HTTP-обработчики API сервиса банка отходов.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	metrics        *metrics.Metrics
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, m *metrics.Metrics) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		metrics:        m,
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeReason(w http.ResponseWriter, status int, reason string) {
	writeJSON(w, status, errorResponse{Error: reason})
}

// decode читает JSON-тело запроса и проверяет его по тегам validate.
// При ошибке ответ уже записан.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad_request", Message: "malformed JSON body"})
		return false
	}

	if err := validation.Struct(dst); err != nil {
		var fe *validation.FieldError
		if errors.As(err, &fe) {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "validation", Field: fe.Field, Message: fe.Message})
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad_request", Message: err.Error()})
		return false
	}
	return true
}

func statusForReason(reason string) int {
	switch reason {
	case "validation", "invalid_step", "invalid_reward":
		return http.StatusUnprocessableEntity
	case "invalid_credentials", "invalid_token":
		return http.StatusUnauthorized
	case "unauthorized", "invalid_admin_secret":
		return http.StatusForbidden
	case "deposit_not_found", "affiliation_not_found", "user_not_found":
		return http.StatusNotFound
	case "not_pending", "not_on_progress", "already_completed", "not_ready",
		"user_exists", "already_affiliated", "not_affiliated", "google_account_linked":
		return http.StatusConflict
	case "federated_disabled":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError переводит ошибку бизнес-логики в HTTP-ответ с машинно-читаемой причиной.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	reason := service.Reason(err)
	status := statusForReason(reason)

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err), zap.String("method", r.Method), zap.String("uri", r.RequestURI))
		writeReason(w, status, "internal")
		return
	}

	resp := errorResponse{Error: reason}
	var ve *lifecycle.ValidationError
	if errors.As(err, &ve) {
		resp.Field = ve.Field
		resp.Message = ve.Reason
	}
	writeJSON(w, status, resp)
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return "", false
	}
	return userID, true
}
