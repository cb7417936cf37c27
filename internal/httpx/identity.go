package httpx

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey int

const identityKey ctxKey = iota

// Resolver turns an opaque bearer credential into an email-equivalent
// identity string. Token verification itself lives upstream; this package
// only consumes the result.
type Resolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

type ResolverFunc func(ctx context.Context, token string) (string, error)

func (f ResolverFunc) Resolve(ctx context.Context, token string) (string, error) {
	return f(ctx, token)
}

// PassthroughResolver trusts the bearer token as the identity itself, for
// deployments where a gateway has already verified the credential and forwards
// the subject in its place.
var PassthroughResolver = ResolverFunc(func(_ context.Context, token string) (string, error) {
	return token, nil
})

// WithIdentity resolves the Authorization header into a request identity.
// Absent or unresolvable credentials leave the request anonymous; handlers
// that require an identity reject it themselves.
func WithIdentity(res Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := bearerToken(r); token != "" {
				if id, err := res.Resolve(r.Context(), token); err == nil && id != "" {
					r = r.WithContext(context.WithValue(r.Context(), identityKey, id))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Identity returns the authenticated identity, or "" for anonymous requests.
func Identity(ctx context.Context) string {
	id, _ := ctx.Value(identityKey).(string)
	return id
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
