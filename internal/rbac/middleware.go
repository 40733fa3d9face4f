// Package rbac authorizes requests against the caller's live account record.
// It runs after auth middleware; the token only proves identity, while role
// and status are read fresh so bans take effect before tokens expire.
package rbac

import (
	"context"
	"errors"
	"net/http"

	"taskhub/internal/apperr"
	"taskhub/internal/auth"
	"taskhub/internal/httpapi"
	"taskhub/internal/user"

	"github.com/gin-gonic/gin"
)

// AccountLookup is satisfied by *user.Service.
type AccountLookup interface {
	Get(ctx context.Context, id string) (user.User, error)
}

const accountKey = "rbac.account"

// Account returns the record loaded by an earlier rbac middleware in the chain.
func Account(c *gin.Context) (user.User, bool) {
	v, ok := c.Get(accountKey)
	if !ok {
		return user.User{}, false
	}
	u, ok := v.(user.User)
	return u, ok
}

func load(c *gin.Context, accounts AccountLookup) (user.User, bool) {
	if u, ok := Account(c); ok {
		return u, true
	}
	uid, err := auth.UserID(c.Request.Context())
	if err != nil {
		httpapi.Abort(c, http.StatusUnauthorized, apperr.CodeUnauthorized, "authentication required")
		return user.User{}, false
	}
	u, err := accounts.Get(c.Request.Context(), uid)
	if errors.Is(err, user.ErrNotFound) {
		// Valid token for an account that no longer exists.
		httpapi.Abort(c, http.StatusUnauthorized, apperr.CodeInvalidToken, "account no longer exists")
		return user.User{}, false
	}
	if err != nil {
		httpapi.Fail(c, err)
		return user.User{}, false
	}
	c.Set(accountKey, u)
	return u, true
}

// RequireActiveAccount rejects banned and inactive accounts with 403.
func RequireActiveAccount(accounts AccountLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := load(c, accounts)
		if !ok {
			return
		}
		switch u.Status {
		case user.StatusBanned:
			httpapi.Abort(c, http.StatusForbidden, apperr.CodeAccountBanned, "account is banned")
			return
		case user.StatusInactive:
			httpapi.Abort(c, http.StatusForbidden, apperr.CodeAccountInactive, "account is inactive")
			return
		}
		c.Next()
	}
}

// RejectBanned lets inactive accounts through and stops banned ones.
// Read-only routes use it.
func RejectBanned(accounts AccountLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := load(c, accounts)
		if !ok {
			return
		}
		if u.Status == user.StatusBanned {
			httpapi.Abort(c, http.StatusForbidden, apperr.CodeAccountBanned, "account is banned")
			return
		}
		c.Next()
	}
}

// RequireAnyRole allows the request if the account holds one of allowed.
// Admins pass every role check.
func RequireAnyRole(accounts AccountLookup, allowed ...user.Role) gin.HandlerFunc {
	allowedSet := make(map[user.Role]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		u, ok := load(c, accounts)
		if !ok {
			return
		}
		if IsAdmin(u.Role) {
			c.Next()
			return
		}
		if _, ok := allowedSet[u.Role]; !ok {
			httpapi.Abort(c, http.StatusForbidden, apperr.CodeForbidden, "forbidden")
			return
		}
		c.Next()
	}
}
