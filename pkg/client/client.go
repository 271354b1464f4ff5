package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
)

// AuthUser is the caller identity taken from a verified access token.
type AuthUser struct {
	UserId string `json:"sub,omitempty"`
	Email  string `json:"email,omitempty"`
	// Parsed form of UserId
	UserUuid uuid.UUID `json:"-"`
}

func (i AuthUser) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("user", i.UserId),
	)
}

// contextKey is a value for use with context.WithValue. It's used as
// a pointer so it fits in an interface{} without allocation.
type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "finance context value " + k.name
}

const (
	ACCESS_TOKEN_NAME = "access_token"
)

var (
	AuthUserKey = &contextKey{"AuthUser"}
)

func LoadFromMap[T any](m map[string]interface{}, c *T) error {
	data, err := json.Marshal(m)
	if err == nil {
		err = json.Unmarshal(data, c)
	}
	return err
}

// AuthUserMiddleware resolves the AuthUser from the claims jwtauth.Verifier
// placed on the context. Requests without a usable subject get 401.
func AuthUserMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || claims == nil {
			http.Error(w, "missing or invalid JWT", http.StatusUnauthorized)
			return
		}

		authUser := new(AuthUser)
		if err := LoadFromMap(claims, authUser); err != nil {
			slog.Error("failed to parse token claims", "error", err)
			http.Error(w, "invalid token claims", http.StatusUnauthorized)
			return
		}

		if authUser.UserId == "" {
			http.Error(w, "missing user ID in token", http.StatusUnauthorized)
			return
		}

		userUUID, err := uuid.Parse(authUser.UserId)
		if err != nil {
			slog.Warn("token subject is not a UUID", "sub", authUser.UserId, "error", err)
			http.Error(w, "invalid user ID in token", http.StatusUnauthorized)
			return
		}
		authUser.UserUuid = userUUID

		ctx := context.WithValue(r.Context(), AuthUserKey, authUser)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAuthUser returns the AuthUser stored by AuthUserMiddleware.
func GetAuthUser(ctx context.Context) (*AuthUser, bool) {
	authUser, ok := ctx.Value(AuthUserKey).(*AuthUser)
	return authUser, ok && authUser != nil
}

func Verifier(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return jwtauth.Verify(ja, jwtauth.TokenFromHeader, TokenFromCookie)
}

func TokenFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(ACCESS_TOKEN_NAME)
	if err != nil {
		return ""
	}
	return cookie.Value
}
