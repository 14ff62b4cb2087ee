package password

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	userstore "github.com/carverdev/projhub/internal/app/store/users"
	"github.com/carverdev/projhub/internal/app/system/httpjson"
	"github.com/carverdev/projhub/internal/app/system/mailer"
	"github.com/carverdev/projhub/internal/app/system/normalize"
	"github.com/carverdev/projhub/internal/app/system/ratelimit"
	"github.com/carverdev/projhub/internal/app/system/timeouts"
)

// ResetTTL is how long a reset link stays valid.
const ResetTTL = time.Hour

const bcryptCost = 10

type Handler struct {
	Users       *userstore.Store
	Mailer      mailer.Sender
	Limiter     *ratelimit.LoginLimiter
	SiteName    string
	FrontendURL string
	Log         *zap.Logger
}

type forgotRequest struct {
	Email string `json:"email"`
}

// HandleForgot handles POST /api/password/forgot.
//
// The response is identical whether or not the email exists, so the
// endpoint cannot be used to enumerate accounts.
func (h *Handler) HandleForgot(w http.ResponseWriter, r *http.Request) {
	var req forgotRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if ok, reason := h.Limiter.Check(r, req.Email); !ok {
		httpjson.Error(w, http.StatusTooManyRequests, reason)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "password forgot")
	defer cancel()

	const neutral = "If that email is registered, a reset link has been sent."

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Message(w, http.StatusOK, neutral)
			return
		}
		httpjson.ServerError(w, h.Log, "password: user lookup failed", err)
		return
	}

	raw, err := generateToken()
	if err != nil {
		httpjson.ServerError(w, h.Log, "password: token generation failed", err)
		return
	}

	if err := h.Users.SetResetToken(ctx, u.ID, raw, time.Now().Add(ResetTTL)); err != nil {
		httpjson.ServerError(w, h.Log, "password: token store failed", err)
		return
	}

	msg := mailer.BuildPasswordResetEmail(mailer.PasswordResetEmailData{
		SiteName:  h.SiteName,
		ResetURL:  fmt.Sprintf("%s/reset-password?token=%s", h.FrontendURL, url.QueryEscape(raw)),
		ExpiresIn: "1 hour",
	})
	msg.To = normalize.Email(u.Email)
	if err := h.Mailer.Send(ctx, msg); err != nil {
		httpjson.ServerError(w, h.Log, "password: reset email failed", err)
		return
	}

	h.Log.Info("password reset requested", zap.String("user_id", u.ID.Hex()))
	httpjson.Message(w, http.StatusOK, neutral)
}

type validateRequest struct {
	Token string `json:"token"`
}

// HandleValidate handles POST /api/password/validate. The frontend
// calls this before rendering the reset form so expired links fail
// early instead of after the user types a new password.
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := httpjson.Decode(r, &req); err != nil || req.Token == "" {
		httpjson.Error(w, http.StatusBadRequest, "Token is required.")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "password validate")
	defer cancel()

	u, err := h.Users.GetByResetToken(ctx, req.Token)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, http.StatusBadRequest, "Reset link is invalid.")
			return
		}
		httpjson.ServerError(w, h.Log, "password: token lookup failed", err)
		return
	}
	if u.PasswordResetExpires == nil || time.Now().After(*u.PasswordResetExpires) {
		httpjson.Error(w, http.StatusBadRequest, "Reset link has expired.")
		return
	}

	httpjson.OK(w, map[string]any{
		"name":  u.Name,
		"email": u.Email,
	})
}

type resetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// HandleReset handles POST /api/password/reset.
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if req.Token == "" {
		httpjson.Error(w, http.StatusBadRequest, "Token is required.")
		return
	}
	if len(req.Password) < 8 {
		httpjson.FieldErrors(w, http.StatusBadRequest, []httpjson.FieldError{
			{Field: "password", Message: "Password must be at least 8 characters."},
		})
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "password reset")
	defer cancel()

	u, err := h.Users.GetByResetToken(ctx, req.Token)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, http.StatusBadRequest, "Reset link is invalid.")
			return
		}
		httpjson.ServerError(w, h.Log, "password: token lookup failed", err)
		return
	}
	if u.PasswordResetExpires == nil || time.Now().After(*u.PasswordResetExpires) {
		httpjson.Error(w, http.StatusBadRequest, "Reset link has expired.")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		httpjson.ServerError(w, h.Log, "password: hash failed", err)
		return
	}

	if err := h.Users.SetPassword(ctx, u.ID, string(hash)); err != nil {
		httpjson.ServerError(w, h.Log, "password: update failed", err)
		return
	}

	h.Log.Info("password reset completed", zap.String("user_id", u.ID.Hex()))
	httpjson.Message(w, http.StatusOK, "Password updated. You can now sign in.")
}

// generateToken returns 32 bytes of crypto-random hex. The raw value is
// emailed; only its hash is stored.
func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
