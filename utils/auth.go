package utils

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

type contextKey string

const userIDKey contextKey = "userId"

// TokenIssuer signs and verifies the bearer credential issued by the
// identity collaborator. HMAC only.
type TokenIssuer struct {
	Secret []byte
	TTL    time.Duration
}

// Issue signs a token whose subject is the user id.
func (ti *TokenIssuer) Issue(userID string) (string, error) {
	if userID == "" {
		return "", Validationf("userId is required")
	}
	ttl := ti.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := time.Now()
	claims := jwtlib.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := tok.SignedString(ti.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify validates the token and returns the stable user identifier.
func (ti *TokenIssuer) Verify(token string) (string, error) {
	parsed, err := jwtlib.Parse(token, func(t *jwtlib.Token) (interface{}, error) {
		// Only the HMAC family is accepted
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected alg: %v", t.Header["alg"])
		}
		return ti.Secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrAuthentication
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrAuthentication
	}
	return sub, nil
}

// Middleware authenticates the Authorization bearer header and stores the
// user id in the request context. Authentication failures abort before any
// mutation.
func (ti *TokenIssuer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			http.Error(w, `{"error": "missing bearer token"}`, http.StatusUnauthorized)
			return
		}
		userID, err := ti.Verify(token)
		if err != nil {
			http.Error(w, `{"error": "invalid bearer token"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

// WithUserID returns a context carrying the authenticated user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext extracts the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}
