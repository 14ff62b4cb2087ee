// internal/app/features/authgoogle/token.go
package authgoogle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/carverdev/projhub/internal/app/system/httpjson"
	"github.com/carverdev/projhub/internal/app/system/timeouts"
	"github.com/carverdev/projhub/internal/domain/models"
)

// tokenInfoURL validates Google ID tokens server-side. Overridable in
// tests.
var tokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

type tokenRequest struct {
	IDToken string `json:"idToken"`
	Role    string `json:"role"`
}

type tokenInfo struct {
	Audience      string `json:"aud"`
	Email         string `json:"email"`
	EmailVerified string `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// HandleToken handles POST /api/auth/google/token. Single-page clients
// that obtained a Google ID token directly post it here for a session
// token.
func (h *Handler) HandleToken(w http.ResponseWriter, r *http.Request) {
	if !h.IsConfigured() {
		httpjson.Error(w, http.StatusServiceUnavailable, "Google sign-in is not configured.")
		return
	}

	var req tokenRequest
	if err := httpjson.Decode(r, &req); err != nil || req.IDToken == "" {
		httpjson.Error(w, http.StatusBadRequest, "idToken is required.")
		return
	}
	if req.Role != "" && !models.IsValidRole(req.Role) {
		httpjson.Error(w, http.StatusBadRequest, "A valid role is required.")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "google token verify")
	defer cancel()

	info, err := h.verifyIDToken(ctx, req.IDToken)
	if err != nil {
		h.Log.Warn("google: id token rejected", zap.Error(err))
		httpjson.Error(w, http.StatusUnauthorized, "Google token could not be verified.")
		return
	}

	u, err := h.resolveAccount(ctx, &googleProfile{
		Email:   info.Email,
		Name:    info.Name,
		Picture: info.Picture,
	})
	if err != nil {
		httpjson.ServerError(w, h.Log, "google: account resolve failed", err)
		return
	}
	if !u.IsActive {
		httpjson.Error(w, http.StatusForbidden, "This account has been deactivated.")
		return
	}
	// Signing in through a surface for a different role is refused, the
	// same as password login.
	if req.Role != "" && req.Role != string(u.Role) {
		httpjson.Error(w, http.StatusForbidden, "This account is not registered for the selected role.")
		return
	}

	jwt, err := h.Tokens.IssueToken(u.ID.Hex(), u.Role)
	if err != nil {
		httpjson.ServerError(w, h.Log, "google: token issue failed", err)
		return
	}

	httpjson.OK(w, map[string]any{
		"success": true,
		"token":   jwt,
		"user":    u.Public(),
	})
}

// verifyIDToken checks the token against Google's tokeninfo endpoint
// and enforces that it was minted for this application.
func (h *Handler) verifyIDToken(ctx context.Context, idToken string) (*tokenInfo, error) {
	client := h.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	endpoint := fmt.Sprintf("%s?id_token=%s", tokenInfoURL, url.QueryEscape(idToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tokeninfo returned %d", resp.StatusCode)
	}

	var info tokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}
	if info.Audience != h.ClientID {
		return nil, errors.New("token audience does not match client id")
	}
	if info.EmailVerified != "true" {
		return nil, errors.New("google email is not verified")
	}
	if info.Email == "" {
		return nil, errors.New("token has no email claim")
	}
	return &info, nil
}
