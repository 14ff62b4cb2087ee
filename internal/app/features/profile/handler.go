// Package profile is the signed-in user's self-service surface: view
// and edit their own account, including the avatar image.
package profile

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"strings"

	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	userstore "github.com/carverdev/projhub/internal/app/store/users"
	sysauth "github.com/carverdev/projhub/internal/app/system/auth"
	"github.com/carverdev/projhub/internal/app/system/httpjson"
	"github.com/carverdev/projhub/internal/app/system/normalize"
	"github.com/carverdev/projhub/internal/app/system/timeouts"
	"github.com/carverdev/projhub/internal/domain/models"
)

// maxImageBytes caps the decoded avatar size. The cap bounds the user
// document when no storage backend is configured and avatars fall back
// to inline data URLs.
const maxImageBytes = 512 * 1024

var sanitizer = bluemonday.StrictPolicy()

// imageTypes maps accepted avatar media types to the file extension
// used when the image goes to the storage backend.
var imageTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// Storage holds avatar images. waffle's pantry/storage Store satisfies
// it, local or S3 backed. A nil Storage keeps avatars inline as data
// URLs on the user document.
type Storage interface {
	Put(ctx context.Context, path string, r io.Reader, opts *storage.PutOptions) error
	Delete(ctx context.Context, path string) error
	URL(path string) string
}

type Handler struct {
	Users   *userstore.Store
	Storage Storage
	Log     *zap.Logger
}

// profileResponse is the self view. Unlike PublicUser it includes
// contact details and the avatar.
type profileResponse struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Email           string      `json:"email"`
	PhoneNumber     string      `json:"phoneNumber,omitempty"`
	Role            models.Role `json:"role"`
	IsGoogleAccount bool        `json:"isGoogleAccount"`
	ProfileImageURL string      `json:"profileImageUrl,omitempty"`
}

func toResponse(u *models.User) profileResponse {
	return profileResponse{
		ID:              u.ID.Hex(),
		Name:            u.Name,
		Email:           u.Email,
		PhoneNumber:     u.PhoneNumber,
		Role:            u.Role,
		IsGoogleAccount: u.IsGoogleAccount,
		ProfileImageURL: u.ProfileImageURL,
	}
}

// HandleGet handles GET /api/profile.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := sysauth.CurrentUser(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "Authentication required.")
		return
	}
	httpjson.OK(w, map[string]any{"success": true, "user": toResponse(user)})
}

type updateRequest struct {
	Name        *string `json:"name"`
	Email       *string `json:"email"`
	PhoneNumber *string `json:"phoneNumber"`

	// Image carries a new avatar as a base64 data URL
	// (data:image/png;base64,...). An empty string clears it.
	Image *string `json:"image"`
}

// HandleUpdate handles PUT /api/profile.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := sysauth.CurrentUser(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "Authentication required.")
		return
	}

	var req updateRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	upd := userstore.ProfileUpdate{PhoneNumber: req.PhoneNumber}
	if req.Email != nil {
		if _, err := mail.ParseAddress(normalize.Email(*req.Email)); err != nil {
			httpjson.FieldErrors(w, http.StatusBadRequest, []httpjson.FieldError{
				{Field: "email", Message: "A valid email is required."},
			})
			return
		}
		upd.Email = req.Email
	}
	if req.Name != nil {
		clean := sanitizer.Sanitize(*req.Name)
		if strings.TrimSpace(clean) == "" {
			httpjson.FieldErrors(w, http.StatusBadRequest, []httpjson.FieldError{
				{Field: "name", Message: "Name must not be empty."},
			})
			return
		}
		upd.Name = &clean
	}
	var img avatarImage
	if req.Image != nil {
		var err error
		img, err = parseImage(*req.Image)
		if err != nil {
			httpjson.FieldErrors(w, http.StatusBadRequest, []httpjson.FieldError{
				{Field: "image", Message: err.Error()},
			})
			return
		}
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "profile update")
	defer cancel()

	if req.Image != nil {
		url, path, err := h.storeAvatar(ctx, user, img)
		if err != nil {
			httpjson.ServerError(w, h.Log, "profile: avatar upload failed", err)
			return
		}
		upd.ProfileImageURL = &url
		upd.AvatarPath = &path
	}

	updated, err := h.Users.UpdateProfile(ctx, user.ID, upd)
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicateEmail) {
			httpjson.FieldErrors(w, http.StatusBadRequest, []httpjson.FieldError{
				{Field: "email", Message: "Email already in use."},
			})
			return
		}
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, http.StatusNotFound, "Account not found.")
			return
		}
		httpjson.ServerError(w, h.Log, "profile update failed", err)
		return
	}

	httpjson.OK(w, map[string]any{"success": true, "user": toResponse(updated)})
}

// avatarImage is a decoded avatar upload. A zero value clears the
// avatar.
type avatarImage struct {
	mediaType string
	data      []byte
	dataURL   string
}

// parseImage checks a data URL avatar: accepted media type, valid
// base64, decoded size under the cap. Empty input clears the avatar.
func parseImage(raw string) (avatarImage, error) {
	if raw == "" {
		return avatarImage{}, nil
	}

	rest, found := strings.CutPrefix(raw, "data:")
	if !found {
		return avatarImage{}, errors.New("Image must be a base64 data URL.")
	}
	mediaType, data, found := strings.Cut(rest, ";base64,")
	if !found {
		return avatarImage{}, errors.New("Image must be base64 encoded.")
	}
	if _, ok := imageTypes[mediaType]; !ok {
		return avatarImage{}, errors.New("Image must be PNG, JPEG or WebP.")
	}

	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return avatarImage{}, errors.New("Image data is not valid base64.")
	}
	if len(decoded) > maxImageBytes {
		return avatarImage{}, fmt.Errorf("Image must be under %d KB.", maxImageBytes/1024)
	}
	return avatarImage{mediaType: mediaType, data: decoded, dataURL: raw}, nil
}

// storeAvatar places a parsed avatar and returns the URL and storage
// path to persist. Without a storage backend the data URL itself is
// the stored form. The previous stored object, if any, is removed.
func (h *Handler) storeAvatar(ctx context.Context, user *models.User, img avatarImage) (url, path string, err error) {
	if img.data == nil {
		h.deleteStored(ctx, user.AvatarPath)
		return "", "", nil
	}
	if h.Storage == nil {
		return img.dataURL, "", nil
	}

	path = fmt.Sprintf("avatars/%s-%s%s", user.ID.Hex(), uuid.New().String()[:8], imageTypes[img.mediaType])
	opts := &storage.PutOptions{ContentType: img.mediaType}
	if err := h.Storage.Put(ctx, path, bytes.NewReader(img.data), opts); err != nil {
		return "", "", err
	}
	h.deleteStored(ctx, user.AvatarPath)
	return h.Storage.URL(path), path, nil
}

// deleteStored removes a previously stored avatar object. Best effort,
// an orphaned object only wastes space.
func (h *Handler) deleteStored(ctx context.Context, path string) {
	if h.Storage == nil || path == "" {
		return
	}
	if err := h.Storage.Delete(ctx, path); err != nil {
		h.Log.Warn("profile: stale avatar delete failed",
			zap.String("path", path), zap.Error(err))
	}
}
