package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/vidshare/backend/internal/apperr"
	"github.com/vidshare/backend/internal/auth"
	"github.com/vidshare/backend/internal/models"
)

// AuthHandler implements the account and session endpoints.
type AuthHandler struct {
	Identity *auth.Identity
}

type signUpRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokensResponse struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

func newTokensResponse(tokens models.SessionTokens) tokensResponse {
	return tokensResponse{
		AccessToken:      tokens.AccessToken,
		AccessExpiresAt:  tokens.AccessExpiresAt,
		RefreshToken:     tokens.RefreshToken,
		RefreshExpiresAt: tokens.RefreshExpiresAt,
	}
}

type authResponse struct {
	User   *userResponse  `json:"user,omitempty"`
	Tokens tokensResponse `json:"tokens"`
}

// SignUp handles POST /api/v1/auth/signup.
func (h AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req signUpRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}

	user, err := h.Identity.Register(ctx, auth.Registration{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	_, tokens, err := h.Identity.Login(ctx, user.Email, req.Password)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	resp := newUserResponse(user)
	respondJSON(ctx, w, http.StatusCreated, authResponse{User: &resp, Tokens: newTokensResponse(tokens)})
}

// Login handles POST /api/v1/auth/login.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		respondError(ctx, w, apperr.Validationf("email and password are required"))
		return
	}

	user, tokens, err := h.Identity.Login(ctx, req.Email, req.Password)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	resp := newUserResponse(user)
	respondJSON(ctx, w, http.StatusOK, authResponse{User: &resp, Tokens: newTokensResponse(tokens)})
}

// Refresh handles POST /api/v1/auth/refresh.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		respondError(ctx, w, apperr.Validationf("refresh token is required"))
		return
	}

	tokens, err := h.Identity.Refresh(ctx, req.RefreshToken)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, authResponse{Tokens: newTokensResponse(tokens)})
}

// Logout handles POST /api/v1/auth/logout.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}

	h.Identity.Logout(ctx, req.RefreshToken)
	w.WriteHeader(http.StatusNoContent)
}
