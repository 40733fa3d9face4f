package auth

import "context"

// Identity is the caller resolved from a verified access token.
// It lives only as long as the request context carrying it.
type Identity struct {
	Subject string
	Email   string
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom reports the attached identity, if any. Handlers behind
// OptionalAccessToken use the boolean to tell anonymous callers apart.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	if !ok || id.Subject == "" {
		return Identity{}, false
	}
	return id, true
}

// UserID returns the authenticated subject or ErrNoIdentity.
// Behind RequireAccessToken a missing identity is a wiring bug, not a client error.
func UserID(ctx context.Context) (string, error) {
	id, ok := IdentityFrom(ctx)
	if !ok {
		return "", ErrNoIdentity
	}
	return id.Subject, nil
}
