// Package directory implements the staff management endpoints. Each
// role gets its own URL space backed by the same role-scoped handlers,
// so a request aimed at /developers can never touch a manager record.
package directory

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	userstore "github.com/carverdev/projhub/internal/app/store/users"
	"github.com/carverdev/projhub/internal/app/system/httpjson"
	"github.com/carverdev/projhub/internal/app/system/mailer"
	"github.com/carverdev/projhub/internal/app/system/normalize"
	"github.com/carverdev/projhub/internal/app/system/paging"
	"github.com/carverdev/projhub/internal/app/system/timeouts"
	"github.com/carverdev/projhub/internal/domain/models"
)

// setupTTL is how long the emailed password setup link stays valid.
const setupTTL = 24 * time.Hour

type Handler struct {
	Users       *userstore.Store
	Mailer      mailer.Sender
	SiteName    string
	FrontendURL string
	Log         *zap.Logger
}

type createRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
}

func (req *createRequest) validate() []httpjson.FieldError {
	var errs []httpjson.FieldError
	if normalize.Name(req.Name) == "" {
		errs = append(errs, httpjson.FieldError{Field: "name", Message: "Name is required."})
	}
	if _, err := mail.ParseAddress(normalize.Email(req.Email)); err != nil {
		errs = append(errs, httpjson.FieldError{Field: "email", Message: "A valid email is required."})
	}
	return errs
}

// handleCreate creates an account in the given role and emails a
// password setup link. If the email cannot be delivered the account is
// removed again: an account nobody can reach is worse than asking the
// admin to retry.
func (h *Handler) handleCreate(role models.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if err := httpjson.Decode(r, &req); err != nil {
			httpjson.Error(w, http.StatusBadRequest, "Invalid request body.")
			return
		}
		if errs := req.validate(); len(errs) > 0 {
			httpjson.FieldErrors(w, http.StatusBadRequest, errs)
			return
		}

		ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "directory create")
		defer cancel()

		u, err := h.Users.Create(ctx, models.User{
			Name:        req.Name,
			Email:       req.Email,
			PhoneNumber: req.PhoneNumber,
			Role:        role,
		})
		if err != nil {
			if errors.Is(err, userstore.ErrDuplicateEmail) {
				httpjson.Error(w, http.StatusBadRequest, "Email already in use.")
				return
			}
			httpjson.ServerError(w, h.Log, "directory: create failed", err)
			return
		}

		raw, err := generateToken()
		if err == nil {
			err = h.Users.SetResetToken(ctx, u.ID, raw, time.Now().Add(setupTTL))
		}
		if err == nil {
			msg := mailer.BuildPasswordSetupEmail(mailer.PasswordSetupEmailData{
				SiteName: h.SiteName,
				Name:     u.Name,
				RoleName: string(role),
				SetupURL: fmt.Sprintf("%s/set-password?token=%s", h.FrontendURL, url.QueryEscape(raw)),
			})
			msg.To = u.Email
			err = h.Mailer.Send(ctx, msg)
		}
		if err != nil {
			if delErr := h.Users.Delete(ctx, u.ID); delErr != nil {
				h.Log.Error("directory: compensating delete failed",
					zap.String("user_id", u.ID.Hex()),
					zap.Error(delErr))
			}
			h.Log.Error("directory: invitation email failed",
				zap.String("email", u.Email),
				zap.Error(err))
			httpjson.Error(w, http.StatusBadGateway, "Could not send the invitation email. The account was not created.")
			return
		}

		h.Log.Info("directory account created",
			zap.String("user_id", u.ID.Hex()),
			zap.String("role", string(role)))

		httpjson.Write(w, http.StatusCreated, map[string]any{
			"success": true,
			"user":    u.Public(),
		})
	}
}

// handleList returns a page of accounts in the role.
func (h *Handler) handleList(role models.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := paging.Parse(r)

		ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "directory list")
		defer cancel()

		users, total, err := h.Users.ListByRole(ctx, role, page.Skip(), page.Limit())
		if err != nil {
			httpjson.ServerError(w, h.Log, "directory: list failed", err)
			return
		}

		out := make([]*models.PublicUser, 0, len(users))
		for i := range users {
			out = append(out, users[i].Public())
		}

		httpjson.OK(w, map[string]any{
			"success": true,
			"users":   out,
			"meta":    paging.MetaFor(page, total),
		})
	}
}

// handleGet returns one account in the role.
func (h *Handler) handleGet(role models.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "directory get")
		defer cancel()

		u, err := h.Users.GetByIDAndRole(ctx, id, role)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				httpjson.Error(w, http.StatusNotFound, "Account not found.")
				return
			}
			httpjson.ServerError(w, h.Log, "directory: get failed", err)
			return
		}

		httpjson.OK(w, map[string]any{"success": true, "user": u.Public()})
	}
}

type updateRequest struct {
	Name        *string `json:"name"`
	Email       *string `json:"email"`
	PhoneNumber *string `json:"phoneNumber"`
}

// handleUpdate edits one account in the role.
func (h *Handler) handleUpdate(role models.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		var req updateRequest
		if err := httpjson.Decode(r, &req); err != nil {
			httpjson.Error(w, http.StatusBadRequest, "Invalid request body.")
			return
		}
		if req.Email != nil {
			if _, err := mail.ParseAddress(normalize.Email(*req.Email)); err != nil {
				httpjson.FieldErrors(w, http.StatusBadRequest, []httpjson.FieldError{
					{Field: "email", Message: "A valid email is required."},
				})
				return
			}
		}

		ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "directory update")
		defer cancel()

		u, err := h.Users.UpdateByIDAndRole(ctx, id, role, userstore.DirectoryUpdate{
			Name:        req.Name,
			Email:       req.Email,
			PhoneNumber: req.PhoneNumber,
		})
		if err != nil {
			switch {
			case errors.Is(err, mongo.ErrNoDocuments):
				httpjson.Error(w, http.StatusNotFound, "Account not found.")
			case errors.Is(err, userstore.ErrDuplicateEmail):
				httpjson.Error(w, http.StatusBadRequest, "Email already in use.")
			default:
				httpjson.ServerError(w, h.Log, "directory: update failed", err)
			}
			return
		}

		httpjson.OK(w, map[string]any{"success": true, "user": u.Public()})
	}
}

// handleDelete removes one account in the role.
func (h *Handler) handleDelete(role models.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "directory delete")
		defer cancel()

		if err := h.Users.DeleteByIDAndRole(ctx, id, role); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				httpjson.Error(w, http.StatusNotFound, "Account not found.")
				return
			}
			httpjson.ServerError(w, h.Log, "directory: delete failed", err)
			return
		}

		h.Log.Info("directory account deleted",
			zap.String("user_id", id.Hex()),
			zap.String("role", string(role)))

		httpjson.Message(w, http.StatusOK, "Account deleted.")
	}
}

type toggleRequest struct {
	IsActive bool `json:"isActive"`
}

// handleToggle flips an account on or off without deleting it.
func (h *Handler) handleToggle(role models.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		var req toggleRequest
		if err := httpjson.Decode(r, &req); err != nil {
			httpjson.Error(w, http.StatusBadRequest, "Invalid request body.")
			return
		}

		ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "directory toggle")
		defer cancel()

		if _, err := h.Users.GetByIDAndRole(ctx, id, role); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				httpjson.Error(w, http.StatusNotFound, "Account not found.")
				return
			}
			httpjson.ServerError(w, h.Log, "directory: toggle lookup failed", err)
			return
		}

		u, err := h.Users.SetActive(ctx, id, req.IsActive)
		if err != nil {
			httpjson.ServerError(w, h.Log, "directory: toggle failed", err)
			return
		}

		httpjson.OK(w, map[string]any{
			"success":  true,
			"user":     u.Public(),
			"isActive": u.IsActive,
		})
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "Invalid account id.")
		return primitive.NilObjectID, false
	}
	return id, true
}

// generateToken returns 32 bytes of crypto-random hex for setup links.
func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
