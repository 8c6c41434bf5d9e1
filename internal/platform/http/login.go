package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/farmaline-dev/farmaline/internal/platform/service"
	"github.com/farmaline-dev/farmaline/pkg/httpx"
	"github.com/farmaline-dev/farmaline/pkg/slogx"
)

// LoginHandler serves POST /v1/auth/login.
type LoginHandler struct {
	Auth *service.AuthService
}

// LoginRequest is the credential payload. OTPCode is required only once the
// identity has an active two-factor credential.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	OTPCode    string `json:"otp_code,omitempty"`
}

// LoginResponse carries the session token and a summary of the identity it
// was issued to.
type LoginResponse struct {
	TokenType   string        `json:"token_type"`
	AccessToken string        `json:"access_token"`
	ExpiresIn   int64         `json:"expires_in"`
	Identity    IdentityBrief `json:"identity"`
}

// IdentityBrief is the identity summary embedded in login responses.
type IdentityBrief struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

func (h *LoginHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrInvalidRequest.WriteError(w)
		return
	}
	if req.Identifier == "" || req.Password == "" {
		ErrInvalidRequest.WriteError(w)
		return
	}

	res, err := h.Auth.Login(ctx, service.LoginInput{
		Identifier: req.Identifier,
		Password:   req.Password,
		OTPCode:    req.OTPCode,
		IP:         httpx.ClientIP(r),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			ErrInvalidCredentials.WriteError(w)
		case errors.Is(err, service.ErrAccountLocked):
			ErrAccountLocked.WriteError(w)
		case errors.Is(err, service.ErrTwoFactorRequired):
			ErrTwoFactorRequired.WriteError(w)
		case errors.Is(err, service.ErrInvalidTwoFactorCode):
			ErrTwoFactorInvalid.WriteError(w)
		default:
			log.Error("login failed unexpectedly", "identifier", req.Identifier, "err", err)
			ErrServerError.WriteError(w)
		}
		return
	}

	expiresIn := int64(0)
	if res.Claims.ExpiresAt != nil && res.Claims.IssuedAt != nil {
		expiresIn = int64(res.Claims.ExpiresAt.Sub(res.Claims.IssuedAt.Time).Seconds())
	}

	httpx.WriteJSON(w, http.StatusOK, LoginResponse{
		TokenType:   "Bearer",
		AccessToken: res.Token,
		ExpiresIn:   expiresIn,
		Identity: IdentityBrief{
			ID:          res.Identity.ID,
			Name:        res.Identity.Name,
			Email:       res.Identity.Email,
			Role:        res.Identity.Role,
			Permissions: res.Claims.Permissions,
		},
	})
}
