package auth

import (
	"context"
	"net/http"
	"strings"
)

const bearerPrefix = "Bearer "

// New returns middleware that requires a bearer token. The token isn't
// checked locally, it's passed on to the upstream services.
func New(next http.Handler) *Auth {
	return &Auth{
		Next: next,
	}
}

type Auth struct {
	Next http.Handler
}

type apiKeyContextKey int

const apiKeyKey apiKeyContextKey = 0

func GetAPIKey(r *http.Request) (apiKey string, ok bool) {
	apiKey, ok = r.Context().Value(apiKeyKey).(string)
	return
}

func (a *Auth) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		http.Error(w, "Invalid authorization header", http.StatusUnauthorized)
		return
	}
	r = r.WithContext(context.WithValue(r.Context(), apiKeyKey, strings.TrimPrefix(header, bearerPrefix)))
	a.Next.ServeHTTP(w, r)
}
