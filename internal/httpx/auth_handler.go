package httpx

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-inventory-orders/internal/auth"
)

type AccountStore interface {
	Register(ctx context.Context, username, email, password string) (*auth.Account, error)
	Login(ctx context.Context, username, password string) (*auth.Account, error)
}

type AuthHandler struct {
	Accounts AccountStore
	JWT      *auth.JWTService
}

type registerReq struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,strongpassword"`
}

type loginReq struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResp struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *AuthHandler) Register(r chi.Router) {
	r.Post("/auth/register", h.register)
	r.Post("/auth/login", h.login)
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fe := validateStruct(req); fe != nil {
		writeValidation(w, fe)
		return
	}

	a, err := h.Accounts.Register(r.Context(), req.Username, req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrAccountExists):
		writeError(w, http.StatusConflict, "Username or email already exists.")
		return
	case errors.Is(err, auth.ErrPasswordTooShort):
		writeValidation(w, FieldErrors{"password": {"Password must be at least 8 characters."}})
		return
	case err != nil:
		log.WithError(err).Error("register account")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fe := validateStruct(req); fe != nil {
		writeValidation(w, fe)
		return
	}

	a, err := h.Accounts.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeJSON(w, http.StatusUnauthorized, loginResp{Message: "Invalid username or password."})
		return
	}
	if err != nil {
		log.WithError(err).Error("login")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	token, expiresAt, err := h.JWT.Generate(*a)
	if err != nil {
		log.WithError(err).Error("sign token")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, loginResp{Success: true, Message: "Login successful.", Token: token, ExpiresAt: expiresAt})
}
