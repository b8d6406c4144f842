package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/banksampah-system/internal/model"
	"github.com/mmeshcher/banksampah-system/internal/service"
)

type registerRequest struct {
	Email    string        `json:"email" validate:"required,email"`
	Password string        `json:"password" validate:"required,min=6"`
	Name     string        `json:"name" validate:"required"`
	NoTelp   string        `json:"noTelp"`
	Role     string        `json:"role" validate:"required,oneof=pengguna pengelola"`
	Wilayah  regionRequest `json:"wilayah"`
}

type credentialsRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type googleRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

type passwordRequest struct {
	Password string `json:"password" validate:"required,min=6"`
}

type profileRequest struct {
	Name    string        `json:"name" validate:"required"`
	NoTelp  string        `json:"noTelp"`
	Role    string        `json:"role" validate:"omitempty,oneof=pengguna pengelola"`
	Wilayah regionRequest `json:"wilayah"`
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, u *model.User, status int) {
	if err := h.authMiddleware.SetAuthCookie(w, u.ID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, status, newUserResponse(u))
}

// Register обрабатывает регистрацию нового пользователя по email и паролю.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}

	u, err := h.service.Register(r.Context(), service.Registration{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Phone:    req.NoTelp,
		Role:     model.Role(req.Role),
		Region:   req.Wilayah.model(),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.startSession(w, r, u, http.StatusCreated)
}

// Login выполняет аутентификацию пользователя и устанавливает cookie сессии.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decode(w, r, &req) {
		return
	}

	u, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.startSession(w, r, u, http.StatusOK)
}

// GoogleSignIn выполняет вход по ID-токену Google.
func (h *Handler) GoogleSignIn(w http.ResponseWriter, r *http.Request) {
	var req googleRequest
	if !decode(w, r, &req) {
		return
	}

	u, err := h.service.SignInWithGoogle(r.Context(), req.IDToken)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.startSession(w, r, u, http.StatusOK)
}

// Logout завершает сессию.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authMiddleware.ClearAuthCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// SetPassword привязывает пароль к учётной записи текущего пользователя.
func (h *Handler) SetPassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req passwordRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.service.SetPassword(r.Context(), userID, req.Password); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Info("password linked", zap.String("userID", userID))
	w.WriteHeader(http.StatusNoContent)
}

// Me возвращает учётную запись текущего пользователя.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	u, err := h.service.GetAccount(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newUserResponse(u))
}

// UpdateProfile сохраняет профиль текущего пользователя.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req profileRequest
	if !decode(w, r, &req) {
		return
	}

	u, err := h.service.UpdateProfile(r.Context(), userID, service.Profile{
		Name:   req.Name,
		Phone:  req.NoTelp,
		Role:   model.Role(req.Role),
		Region: req.Wilayah.model(),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newUserResponse(u))
}
