package auth

import (
	"errors"
	"net/http"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	otpstore "github.com/carverdev/projhub/internal/app/store/otps"
	pendingstore "github.com/carverdev/projhub/internal/app/store/pendingsignups"
	userstore "github.com/carverdev/projhub/internal/app/store/users"
	sysauth "github.com/carverdev/projhub/internal/app/system/auth"
	"github.com/carverdev/projhub/internal/app/system/httpjson"
	"github.com/carverdev/projhub/internal/app/system/mailer"
	"github.com/carverdev/projhub/internal/app/system/normalize"
	"github.com/carverdev/projhub/internal/app/system/ratelimit"
	"github.com/carverdev/projhub/internal/app/system/timeouts"
	"github.com/carverdev/projhub/internal/domain/models"
)

// bcryptCost matches the cost used across the application so hashes
// created anywhere verify the same way.
const bcryptCost = 10

type Handler struct {
	Users    *userstore.Store
	Pending  *pendingstore.Store
	OTPs     *otpstore.Store
	Mailer   mailer.Sender
	Tokens   *sysauth.Manager
	Limiter  *ratelimit.LoginLimiter
	SiteName string
	Log      *zap.Logger
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type authResponse struct {
	Success bool               `json:"success"`
	Token   string             `json:"token"`
	User    *models.PublicUser `json:"user"`
}

// HandleLogin handles POST /api/auth.
//
// Credentials that do not match return 401. A correct password with
// the wrong role selected returns 403 so the client can tell the user
// to switch portals rather than retype the password.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	req.Email = normalize.Email(req.Email)
	if req.Email == "" || req.Password == "" {
		httpjson.Error(w, http.StatusBadRequest, "Email and password are required.")
		return
	}
	if !models.IsValidRole(req.Role) {
		httpjson.Error(w, http.StatusBadRequest, "A valid role is required.")
		return
	}

	if ok, reason := h.Limiter.Check(r, req.Email); !ok {
		httpjson.Error(w, http.StatusTooManyRequests, reason)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "login lookup")
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, http.StatusUnauthorized, "Invalid credentials.")
			return
		}
		httpjson.ServerError(w, h.Log, "login: user lookup failed", err)
		return
	}

	// Role mismatch wins over everything else, including a wrong
	// password, so an attacker cannot tell which check failed.
	if req.Role != string(u.Role) {
		httpjson.Error(w, http.StatusForbidden, "This account does not hold the selected role.")
		return
	}

	if u.IsGoogleAccount && u.PasswordHash == "" {
		httpjson.Error(w, http.StatusUnauthorized, "This account signs in with Google.")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		httpjson.Error(w, http.StatusUnauthorized, "Invalid credentials.")
		return
	}

	if !u.IsActive {
		httpjson.Error(w, http.StatusForbidden, "This account has been deactivated.")
		return
	}

	token, err := h.Tokens.IssueToken(u.ID.Hex(), u.Role)
	if err != nil {
		httpjson.ServerError(w, h.Log, "login: token issue failed", err)
		return
	}

	h.Limiter.ResetEmail(req.Email)
	h.Log.Info("user logged in",
		zap.String("user_id", u.ID.Hex()),
		zap.String("role", string(u.Role)))

	httpjson.OK(w, authResponse{Success: true, Token: token, User: u.Public()})
}
