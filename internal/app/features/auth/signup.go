// internal/app/features/auth/signup.go
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	otpstore "github.com/carverdev/projhub/internal/app/store/otps"
	pendingstore "github.com/carverdev/projhub/internal/app/store/pendingsignups"
	userstore "github.com/carverdev/projhub/internal/app/store/users"
	"github.com/carverdev/projhub/internal/app/system/httpjson"
	"github.com/carverdev/projhub/internal/app/system/mailer"
	"github.com/carverdev/projhub/internal/app/system/normalize"
	"github.com/carverdev/projhub/internal/app/system/timeouts"
	"github.com/carverdev/projhub/internal/domain/models"
)

type signupRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password"`
	Role        string `json:"role"`
}

func (req *signupRequest) validate() []httpjson.FieldError {
	var errs []httpjson.FieldError

	if normalize.Name(req.Name) == "" {
		errs = append(errs, httpjson.FieldError{Field: "name", Message: "Name is required."})
	}
	if _, err := mail.ParseAddress(normalize.Email(req.Email)); err != nil {
		errs = append(errs, httpjson.FieldError{Field: "email", Message: "A valid email is required."})
	}
	if len(req.Password) < 8 {
		errs = append(errs, httpjson.FieldError{Field: "password", Message: "Password must be at least 8 characters."})
	}
	if !models.IsValidRole(req.Role) {
		errs = append(errs, httpjson.FieldError{Field: "role", Message: "Unknown role."})
	}
	return errs
}

// HandleSignupInitiate handles POST /api/auth/signup/initiate.
//
// Nothing is written to the users collection yet. The registration is
// staged with a hashed password and a verification code is emailed.
func (h *Handler) HandleSignupInitiate(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if errs := req.validate(); len(errs) > 0 {
		httpjson.FieldErrors(w, http.StatusBadRequest, errs)
		return
	}
	if ok, reason := h.Limiter.Check(r, req.Email); !ok {
		httpjson.Error(w, http.StatusTooManyRequests, reason)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "signup initiate")
	defer cancel()

	exists, err := h.Users.EmailExists(ctx, req.Email)
	if err != nil {
		httpjson.ServerError(w, h.Log, "signup: email check failed", err)
		return
	}
	if exists {
		httpjson.Error(w, http.StatusBadRequest, "Email already in use.")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		httpjson.ServerError(w, h.Log, "signup: password hash failed", err)
		return
	}

	err = h.Pending.Stage(ctx, models.PendingSignup{
		Name:         req.Name,
		Email:        req.Email,
		PhoneNumber:  req.PhoneNumber,
		PasswordHash: string(hash),
		Role:         models.Role(req.Role),
	})
	if err != nil {
		httpjson.ServerError(w, h.Log, "signup: staging failed", err)
		return
	}

	if err := h.sendOTP(r, req.Email); err != nil {
		httpjson.ServerError(w, h.Log, "signup: verification email failed", err)
		return
	}

	httpjson.Message(w, http.StatusOK, "Verification code sent. Check your email.")
}

type verifyRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// HandleSignupVerify handles POST /api/auth/signup/verify.
//
// Redeeming the code promotes the staged registration into a real
// account and signs the user in.
func (h *Handler) HandleSignupVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "signup verify")
	defer cancel()

	if err := h.OTPs.Redeem(ctx, req.Email, req.OTP); err != nil {
		switch {
		case errors.Is(err, otpstore.ErrNotFound), errors.Is(err, otpstore.ErrExpired):
			httpjson.Error(w, http.StatusBadRequest, "Verification code has expired. Request a new one.")
		case errors.Is(err, otpstore.ErrMismatch):
			httpjson.Error(w, http.StatusBadRequest, "Incorrect verification code.")
		default:
			httpjson.ServerError(w, h.Log, "signup: code redeem failed", err)
		}
		return
	}

	staged, err := h.Pending.Get(ctx, req.Email)
	if err != nil {
		if errors.Is(err, pendingstore.ErrNotFound) || errors.Is(err, pendingstore.ErrExpired) {
			httpjson.Error(w, http.StatusBadRequest, "Signup has expired. Please register again.")
			return
		}
		httpjson.ServerError(w, h.Log, "signup: staged lookup failed", err)
		return
	}

	u, err := h.Users.Create(ctx, models.User{
		Name:         staged.Name,
		Email:        staged.Email,
		PhoneNumber:  staged.PhoneNumber,
		PasswordHash: staged.PasswordHash,
		Role:         staged.Role,
	})
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicateEmail) {
			httpjson.Error(w, http.StatusBadRequest, "Email already in use.")
			return
		}
		httpjson.ServerError(w, h.Log, "signup: user create failed", err)
		return
	}

	if err := h.Pending.Remove(ctx, req.Email); err != nil {
		h.Log.Warn("signup: staged cleanup failed",
			zap.String("email", staged.Email),
			zap.Error(err))
	}

	token, err := h.Tokens.IssueToken(u.ID.Hex(), u.Role)
	if err != nil {
		httpjson.ServerError(w, h.Log, "signup: token issue failed", err)
		return
	}

	h.Log.Info("user registered",
		zap.String("user_id", u.ID.Hex()),
		zap.String("role", string(u.Role)))

	httpjson.Write(w, http.StatusCreated, authResponse{Success: true, Token: token, User: u.Public()})
}

type resendRequest struct {
	Email string `json:"email"`
}

// HandleSignupResend handles POST /api/auth/signup/resend.
func (h *Handler) HandleSignupResend(w http.ResponseWriter, r *http.Request) {
	var req resendRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if ok, reason := h.Limiter.Check(r, req.Email); !ok {
		httpjson.Error(w, http.StatusTooManyRequests, reason)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "signup resend")
	defer cancel()

	if _, err := h.Pending.Get(ctx, req.Email); err != nil {
		if errors.Is(err, pendingstore.ErrNotFound) || errors.Is(err, pendingstore.ErrExpired) {
			httpjson.Error(w, http.StatusBadRequest, "No pending signup for this email. Please register again.")
			return
		}
		httpjson.ServerError(w, h.Log, "signup: staged lookup failed", err)
		return
	}

	if err := h.sendOTP(r, req.Email); err != nil {
		httpjson.ServerError(w, h.Log, "signup: verification email failed", err)
		return
	}

	httpjson.Message(w, http.StatusOK, "Verification code re-sent. Check your email.")
}

func (h *Handler) sendOTP(r *http.Request, email string) error {
	code, err := h.OTPs.Issue(r.Context(), email)
	if err != nil {
		return fmt.Errorf("issue code: %w", err)
	}

	msg := mailer.BuildOTPEmail(mailer.OTPEmailData{
		SiteName:  h.SiteName,
		Code:      code,
		ExpiresIn: formatTTL(otpstore.CodeTTL),
	})
	msg.To = normalize.Email(email)
	return h.Mailer.Send(r.Context(), msg)
}

func formatTTL(d time.Duration) string {
	return fmt.Sprintf("%d minutes", int(d.Minutes()))
}
