package auth

import (
	"context"
	"net/http"

	"society-live/contract"
	"society-live/domain"
	"society-live/errors"
)

type contextKey string

const identityKey contextKey = "identity"

// Middleware handles bearer token validation for incoming HTTP calls and
// injects the resolved identity into the request context.
func Middleware(authenticator contract.IAuthenticator, onError func(w http.ResponseWriter, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := authenticator.Authenticate(r.Header.Get("Authorization"))
			if err != nil {
				onError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

func IdentityFromContext(ctx context.Context) (domain.Identity, error) {
	identity, ok := ctx.Value(identityKey).(domain.Identity)
	if !ok {
		return domain.Identity{}, errors.ErrAuth
	}
	return identity, nil
}
