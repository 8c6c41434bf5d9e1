package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/farmaline-dev/farmaline/internal/platform/service"
	"github.com/farmaline-dev/farmaline/internal/platform/store"
	"github.com/farmaline-dev/farmaline/pkg/httpx"
	"github.com/farmaline-dev/farmaline/pkg/slogx"
)

// TwoFactorHandler serves the /v1/auth/2fa endpoints. All of them require an
// authenticated session; the identity comes from the bearer token, never from
// the request body.
type TwoFactorHandler struct {
	TwoFactor *service.TwoFactorService
	Store     store.Store
}

// TwoFactorEnrollResponse returns the shared secret and the backup codes.
// Both are shown exactly once; only fingerprints are stored server side.
type TwoFactorEnrollResponse struct {
	Secret          string   `json:"secret"`
	ProvisioningURL string   `json:"provisioning_url"`
	Issuer          string   `json:"issuer"`
	Account         string   `json:"account"`
	BackupCodes     []string `json:"backup_codes"`
}

// TwoFactorCodeRequest carries the TOTP or backup code for activation and
// deactivation.
type TwoFactorCodeRequest struct {
	Code string `json:"code"`
}

// HandleEnroll handles POST /v1/auth/2fa/enroll.
func (h *TwoFactorHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	identityID, ok := httpx.IdentityIDFromContext(ctx)
	if !ok {
		ErrInvalidToken.WriteError(w)
		return
	}

	identity, err := h.Store.Identities().GetByID(ctx, identityID)
	if err != nil {
		log.Error("failed to load identity", "identity_id", identityID, "err", err)
		ErrServerError.WriteError(w)
		return
	}

	enrollment, err := h.TwoFactor.Enroll(ctx, identity)
	if err != nil {
		if errors.Is(err, service.ErrTwoFactorAlreadyActive) {
			httpx.WriteJSON(w, http.StatusConflict, map[string]string{
				"error":             "two_factor_active",
				"error_description": "two-factor authentication is already active",
			})
			return
		}
		log.Error("failed to enroll two-factor", "identity_id", identityID, "err", err)
		ErrServerError.WriteError(w)
		return
	}

	httpx.SetAuditDescription(ctx, "started two-factor enrollment")

	httpx.WriteJSON(w, http.StatusOK, TwoFactorEnrollResponse{
		Secret:          enrollment.Secret,
		ProvisioningURL: enrollment.ProvisioningURL,
		Issuer:          enrollment.Issuer,
		Account:         enrollment.Account,
		BackupCodes:     enrollment.BackupCodes,
	})
}

// HandleActivate handles POST /v1/auth/2fa/activate.
func (h *TwoFactorHandler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	identityID, ok := httpx.IdentityIDFromContext(ctx)
	if !ok {
		ErrInvalidToken.WriteError(w)
		return
	}

	var req TwoFactorCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.TwoFactor.Activate(ctx, identityID, req.Code); err != nil {
		switch {
		case errors.Is(err, service.ErrTwoFactorNotEnrolled):
			httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{
				"error":             "two_factor_not_enrolled",
				"error_description": "enroll before activating",
			})
		case errors.Is(err, service.ErrTwoFactorAlreadyActive):
			httpx.WriteJSON(w, http.StatusConflict, map[string]string{
				"error":             "two_factor_active",
				"error_description": "two-factor authentication is already active",
			})
		case errors.Is(err, service.ErrInvalidTwoFactorCode):
			ErrTwoFactorInvalid.WriteError(w)
		default:
			log.Error("failed to activate two-factor", "identity_id", identityID, "err", err)
			ErrServerError.WriteError(w)
		}
		return
	}

	httpx.SetAuditDescription(ctx, "activated two-factor authentication")

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "active"})
}

// HandleDeactivate handles DELETE /v1/auth/2fa. The body must carry a valid
// TOTP code or an unused backup code; possession of the session alone is not
// enough to switch the second factor off.
func (h *TwoFactorHandler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	identityID, ok := httpx.IdentityIDFromContext(ctx)
	if !ok {
		ErrInvalidToken.WriteError(w)
		return
	}

	var req TwoFactorCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.TwoFactor.Deactivate(ctx, identityID, req.Code); err != nil {
		switch {
		case errors.Is(err, service.ErrTwoFactorNotActive):
			httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{
				"error":             "two_factor_not_active",
				"error_description": "two-factor authentication is not active",
			})
		case errors.Is(err, service.ErrInvalidTwoFactorCode):
			ErrTwoFactorInvalid.WriteError(w)
		default:
			log.Error("failed to deactivate two-factor", "identity_id", identityID, "err", err)
			ErrServerError.WriteError(w)
		}
		return
	}

	httpx.SetAuditDescription(ctx, "deactivated two-factor authentication")

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "inactive"})
}
