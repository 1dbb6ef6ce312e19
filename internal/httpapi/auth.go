package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleVendor Role = "vendor"
	RoleAdmin  Role = "admin"
)

var (
	errUnauthenticated = errors.New("authentication required")
	errForbidden       = errors.New("insufficient role")
	errNotVisible      = errors.New("order not found")
)

// Principal is the caller named by a verified bearer token.
type Principal struct {
	UserID uuid.UUID
	Role   Role
}

type claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

type principalKey struct{}

// Authenticator verifies HS256 bearer tokens. Tokens are issued elsewhere; the
// subject must be the user's uuid.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

func (a *Authenticator) Parse(tokenString string) (*Principal, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(token *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", errUnauthenticated, err)
	}

	userID, err := uuid.Parse(c.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: subject is not a user id", errUnauthenticated)
	}

	switch c.Role {
	case RoleBuyer, RoleVendor, RoleAdmin:
	default:
		return nil, fmt.Errorf("%w: unknown role %q", errUnauthenticated, c.Role)
	}

	return &Principal{UserID: userID, Role: c.Role}, nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

// Optional attaches the principal when a bearer token is sent. A token that
// does not verify is rejected rather than ignored.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		principal, err := a.Parse(token)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), principal)))
	})
}

// Require rejects callers without a valid token, or whose role is not listed.
func (a *Authenticator) Require(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeErr(w, r, errUnauthenticated)
				return
			}

			principal, err := a.Parse(token)
			if err != nil {
				writeErr(w, r, err)
				return
			}
			if len(roles) > 0 && !slices.Contains(roles, principal.Role) {
				writeErr(w, r, errForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), principal)))
		})
	}
}

func withPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok
}
