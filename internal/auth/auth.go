// Package auth resolves the caller from a bearer JWT.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var ErrUnauthenticated = errors.New("please authenticate")

// RoleAdmin is the role claim that unlocks the admin routes.
const RoleAdmin = "admin"

type (
	userIDKey struct{}
	roleKey   struct{}
)

// WithUserID returns a context carrying the authenticated user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey{}).(string)
	return id, ok && id != ""
}

// WithRole returns a context carrying the caller's role claim.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleKey{}, role)
}

func Role(ctx context.Context) string {
	role, _ := ctx.Value(roleKey{}).(string)
	return role
}

// Identity is what a verified token says about the caller.
type Identity struct {
	UserID string
	Role   string
}

type claims struct {
	ID   string `json:"id"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 tokens signed with the shared secret. The
// user id is read from the "id" claim, falling back to "sub".
type Authenticator struct {
	secret []byte
	logger *slog.Logger
}

func NewAuthenticator(secret string, logger *slog.Logger) *Authenticator {
	return &Authenticator{secret: []byte(secret), logger: logger}
}

func (a *Authenticator) ParseToken(token string) (Identity, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, errors.Join(ErrUnauthenticated, err)
	}

	id := Identity{UserID: c.ID, Role: c.Role}
	if id.UserID == "" {
		id.UserID = c.Subject
	}
	if id.UserID == "" {
		return Identity{}, ErrUnauthenticated
	}
	return id, nil
}

// Require rejects requests without a valid bearer token.
func (a *Authenticator) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			a.reject(w)
			return
		}

		id, err := a.ParseToken(token)
		if err != nil {
			a.logger.Warn("rejected bearer token", "error", err, "path", r.URL.Path)
			a.reject(w)
			return
		}

		ctx := WithRole(WithUserID(r.Context(), id.UserID), id.Role)
		next(w, r.WithContext(ctx))
	}
}

// RequireAdmin is Require plus a role check; non-admin callers get 403.
func (a *Authenticator) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return a.Require(func(w http.ResponseWriter, r *http.Request) {
		if Role(r.Context()) != RoleAdmin {
			userID, _ := UserID(r.Context())
			a.logger.Warn("admin route denied", "user_id", userID, "path", r.URL.Path)
			a.writeError(w, http.StatusForbidden, "Access denied. Admin only.")
			return
		}
		next(w, r)
	})
}

func (a *Authenticator) reject(w http.ResponseWriter) {
	a.writeError(w, http.StatusUnauthorized, "Please authenticate")
}

func (a *Authenticator) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]any{"success": false, "message": message}); err != nil {
		a.logger.Error("failed to encode response", "error", err)
	}
}
