// internal/app/features/authgoogle/handler.go
package authgoogle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/carverdev/projhub/internal/app/store/oauthstate"
	userstore "github.com/carverdev/projhub/internal/app/store/users"
	sysauth "github.com/carverdev/projhub/internal/app/system/auth"
	"github.com/carverdev/projhub/internal/app/system/httpjson"
	"github.com/carverdev/projhub/internal/app/system/timeouts"
	"github.com/carverdev/projhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
)

// Handler handles Google sign-in, both the redirect flow and the
// client-side ID token flow.
type Handler struct {
	Users      *userstore.Store
	StateStore *oauthstate.Store
	Tokens     *sysauth.Manager
	Log        *zap.Logger

	ClientID     string
	ClientSecret string
	RedirectURL  string // e.g., "https://api.projhub.dev/api/auth/google/callback"
	FrontendURL  string // where the browser lands with the issued token

	// HTTPClient overrides the default client in tests.
	HTTPClient *http.Client
}

// oauth2Config returns the Google OAuth2 configuration.
func (h *Handler) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.ClientID,
		ClientSecret: h.ClientSecret,
		RedirectURL:  h.RedirectURL,
		Scopes: []string{
			"openid",
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

// IsConfigured returns true if Google OAuth is configured.
func (h *Handler) IsConfigured() bool {
	return h.ClientID != "" && h.ClientSecret != ""
}

// ServeLogin handles GET /api/auth/google. It mints a state token and
// redirects to Google's consent screen.
func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	if !h.IsConfigured() {
		httpjson.Error(w, http.StatusServiceUnavailable, "Google sign-in is not configured.")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "oauth state issue")
	defer cancel()

	state, err := h.StateStore.Issue(ctx, query.Get(r, "return"))
	if err != nil {
		httpjson.ServerError(w, h.Log, "google: state issue failed", err)
		return
	}

	http.Redirect(w, r, h.oauth2Config().AuthCodeURL(state), http.StatusSeeOther)
}

// googleProfile is the subset of the userinfo response we use.
type googleProfile struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// ServeCallback handles GET /api/auth/google/callback. It validates the
// state, exchanges the code, resolves the account and bounces the
// browser to the frontend with a token.
func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "google callback")
	defer cancel()

	if _, err := h.StateStore.Consume(ctx, query.Get(r, "state")); err != nil {
		if errors.Is(err, oauthstate.ErrInvalidState) {
			h.redirectError(w, r, "invalid_state")
			return
		}
		httpjson.ServerError(w, h.Log, "google: state consume failed", err)
		return
	}

	code := query.Get(r, "code")
	if code == "" {
		h.redirectError(w, r, "missing_code")
		return
	}

	tok, err := h.oauth2Config().Exchange(ctx, code)
	if err != nil {
		h.Log.Warn("google: code exchange failed", zap.Error(err))
		h.redirectError(w, r, "exchange_failed")
		return
	}

	profile, err := h.fetchProfile(ctx, tok)
	if err != nil {
		h.Log.Warn("google: userinfo fetch failed", zap.Error(err))
		h.redirectError(w, r, "profile_failed")
		return
	}

	u, err := h.resolveAccount(ctx, profile)
	if err != nil {
		httpjson.ServerError(w, h.Log, "google: account resolve failed", err)
		return
	}
	if !u.IsActive {
		h.redirectError(w, r, "account_deactivated")
		return
	}

	jwt, err := h.Tokens.IssueToken(u.ID.Hex(), u.Role)
	if err != nil {
		httpjson.ServerError(w, h.Log, "google: token issue failed", err)
		return
	}

	dest := fmt.Sprintf("%s/auth/callback?token=%s", h.FrontendURL, url.QueryEscape(jwt))
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

func (h *Handler) fetchProfile(ctx context.Context, tok *oauth2.Token) (*googleProfile, error) {
	client := h.oauth2Config().Client(ctx, tok)
	resp, err := client.Get("https://openidconnect.googleapis.com/v1/userinfo")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned %d", resp.StatusCode)
	}

	var p googleProfile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, err
	}
	if p.Email == "" {
		return nil, errors.New("userinfo response had no email")
	}
	return &p, nil
}

// resolveAccount finds the account for a verified Google identity,
// creating one on first sign-in. New identities start as companyAdmin;
// other roles are provisioned by an admin through the directory, never
// self-assigned through OAuth.
func (h *Handler) resolveAccount(ctx context.Context, p *googleProfile) (*models.User, error) {
	u, err := h.Users.GetByEmail(ctx, p.Email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	created, err := h.Users.Create(ctx, models.User{
		Name:            p.Name,
		Email:           p.Email,
		Role:            models.RoleCompanyAdmin,
		IsGoogleAccount: true,
		ProfileImageURL: p.Picture,
	})
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicateEmail) {
			// Raced with another sign-in for the same identity.
			return h.Users.GetByEmail(ctx, p.Email)
		}
		return nil, err
	}

	h.Log.Info("google account created",
		zap.String("user_id", created.ID.Hex()))
	return &created, nil
}

func (h *Handler) redirectError(w http.ResponseWriter, r *http.Request, reason string) {
	dest := fmt.Sprintf("%s/login?error=%s", h.FrontendURL, url.QueryEscape(reason))
	http.Redirect(w, r, dest, http.StatusSeeOther)
}
