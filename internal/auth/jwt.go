// Package auth resolves the caller identity from tokens issued by the
// account service.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/turfwar-server/internal/config"
	"github.com/turfwar-server/internal/domain"
)

var (
	ErrNoToken      = errors.New("no token")
	ErrInvalidToken = errors.New("invalid token")
)

const (
	noTokenMessage      = "No token, authorization denied"
	invalidTokenMessage = "Token is not valid"
)

// Claims carries the caller under a "user" key
type Claims struct {
	User domain.Identity `json:"user"`
	jwt.RegisteredClaims
}

type contextKey struct{}

// WithIdentity returns a copy of ctx carrying id
func WithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// IdentityFrom returns the caller stored by the middleware
func IdentityFrom(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(domain.Identity)
	return id, ok
}

// Verifier checks HS256 tokens
type Verifier struct {
	secret []byte
	header string
}

// NewVerifier creates a token verifier
func NewVerifier(cfg *config.AuthConfig) *Verifier {
	return &Verifier{
		secret: []byte(cfg.JWTSecret),
		header: cfg.TokenHeader,
	}
}

// Issue signs a token for id. The account service normally does this; it is
// kept here for tooling and tests.
func (v *Verifier) Issue(id domain.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		User: id,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify parses a raw token and returns the caller it names
func (v *Verifier) Verify(raw string) (domain.Identity, error) {
	if raw == "" {
		return domain.Identity{}, ErrNoToken
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.User.ID == "" {
		return domain.Identity{}, ErrInvalidToken
	}
	return claims.User, nil
}

// tokenFrom reads the configured header first, then a bearer token
func (v *Verifier) tokenFrom(r *http.Request) string {
	if tok := r.Header.Get(v.header); tok != "" {
		return tok
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// Middleware rejects requests without a valid token and stores the caller
// in the request context
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := v.Verify(v.tokenFrom(r))
		if err != nil {
			msg := invalidTokenMessage
			if errors.Is(err, ErrNoToken) {
				msg = noTokenMessage
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"message": msg})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}
