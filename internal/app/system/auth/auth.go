package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/carverdev/projhub/internal/app/system/httpjson"
	"github.com/carverdev/projhub/internal/domain/models"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Token manager                                                              |
*─────────────────────────────────────────────────────────────────────────────*/

// TokenTTL is how long an issued token stays valid.
const TokenTTL = 30 * 24 * time.Hour

// Claims is the payload carried in every access token.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Manager signs and verifies access tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
}

// NewManager returns a Manager. The secret must be at least 32 bytes;
// shorter secrets are accepted with a warning so local dev still works.
func NewManager(secret string, logger *zap.Logger) (*Manager, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is empty; provide ≥32 random chars")
	}
	if len(secret) < 32 {
		logger.Warn("jwt secret is short; 32+ chars recommended",
			zap.Int("length", len(secret)))
	}
	return &Manager{secret: []byte(secret), ttl: TokenTTL}, nil
}

// IssueToken mints a signed token for the given user and role.
func (m *Manager) IssueToken(userID string, role models.Role) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Parse verifies the signature and expiry and returns the claims.
func (m *Manager) Parse(token string) (*Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return &claims, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Current-User helper                                                        |
*─────────────────────────────────────────────────────────────────────────────*/

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the authenticated user and a "found?" flag.
func CurrentUser(r *http.Request) (*models.User, bool) {
	u, ok := r.Context().Value(currentUserKey).(*models.User)
	return u, ok
}

// WithUser returns a copy of r carrying u. Exposed for tests.
func WithUser(r *http.Request, u *models.User) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

// UserFetcher loads the account behind a verified token. The live
// implementation is the users store; tests substitute a stub.
type UserFetcher interface {
	ByID(ctx context.Context, id string) (*models.User, error)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Middleware                                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

// Authenticate verifies the bearer token, re-fetches the account so
// deactivated or deleted users are cut off immediately, and injects the
// user into context. Requests without a token pass through anonymous;
// RequireSignedIn and RequireRole decide whether that matters.
func Authenticate(m *Manager, users UserFetcher, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := m.Parse(token)
			if err != nil {
				httpjson.Error(w, http.StatusUnauthorized, "Invalid or expired token.")
				return
			}

			u, err := users.ByID(r.Context(), claims.Subject)
			if err != nil {
				httpjson.Error(w, http.StatusUnauthorized, "Invalid or expired token.")
				return
			}
			if !u.IsActive {
				httpjson.Error(w, http.StatusForbidden, "This account has been deactivated.")
				return
			}

			// A role claim that no longer matches the account means the
			// role changed after issue; trust the database.
			if claims.Role != string(u.Role) {
				logger.Debug("token role is stale",
					zap.String("user_id", claims.Subject),
					zap.String("token_role", claims.Role),
					zap.String("current_role", string(u.Role)))
			}

			next.ServeHTTP(w, WithUser(r, u))
		})
	}
}

// RequireSignedIn ensures there is a user in context (set by Authenticate).
func RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); !ok {
			httpjson.Error(w, http.StatusUnauthorized, "Authentication required.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole ensures the user in context holds one of the allowed roles.
func RequireRole(allowed ...models.Role) func(http.Handler) http.Handler {
	set := make(map[models.Role]struct{}, len(allowed))
	for _, role := range allowed {
		set[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r)
			if !ok {
				httpjson.Error(w, http.StatusUnauthorized, "Authentication required.")
				return
			}
			if _, has := set[u.Role]; !has {
				httpjson.Error(w, http.StatusForbidden, "You do not have permission to perform this action.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken reads the token from Authorization: Bearer or, for older
// clients, the x-auth-token header.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		}
	}
	return strings.TrimSpace(r.Header.Get("x-auth-token"))
}
