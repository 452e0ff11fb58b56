package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"
)

const (
	ctxKeyUserID = "user_id"
	ctxKeyEmail  = "email"
	ctxKeyRole   = "role"
)

// exemptPrefixes are reachable without a token.
var exemptPrefixes = []string{
	"/apidocs",
	"/swagger.json",
	"/flasgger_static",
	"/static",
	"/api/login",
	"/api/forgot-password",
	"/public/pdfs",
	"/pdfs",
}

// IsExempt reports whether a request skips authentication.
func IsExempt(method, path string) bool {
	if method == consts.MethodOptions || path == "/" || path == "/health" {
		return true
	}
	for _, p := range exemptPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Middleware requires "Authorization: Bearer <jwt>" on every non-exempt route
// and stores the caller's identity on the request context.
func Middleware(tm *TokenManager) app.HandlerFunc {
	return keyauth.New(
		keyauth.WithKeyLookUp("header:Authorization", "Bearer"),
		keyauth.WithFilter(func(ctx context.Context, c *app.RequestContext) bool {
			return IsExempt(string(c.Method()), string(c.Path()))
		}),
		keyauth.WithValidator(func(ctx context.Context, c *app.RequestContext, token string) (bool, error) {
			id, err := tm.Parse(token)
			if err != nil {
				return false, err
			}
			c.Set(ctxKeyUserID, id.UserID)
			c.Set(ctxKeyEmail, id.Email)
			c.Set(ctxKeyRole, id.Role)
			return true, nil
		}),
		keyauth.WithErrorHandler(func(ctx context.Context, c *app.RequestContext, err error) {
			status, msg := errorResponse(err)
			c.AbortWithStatusJSON(status, utils.H{"error": msg})
		}),
	)
}

// errorResponse maps a validation failure to its status and message.
func errorResponse(err error) (int, string) {
	switch {
	case err == nil, errors.Is(err, keyauth.ErrMissingOrMalformedAPIKey), errors.Is(err, ErrMissingAuthHeader):
		return consts.StatusUnauthorized, ErrMissingAuthHeader.Error()
	case errors.Is(err, ErrTokenExpired):
		return consts.StatusUnauthorized, ErrTokenExpired.Error()
	case errors.Is(err, ErrTokenPayload):
		return consts.StatusForbidden, ErrTokenPayload.Error()
	default:
		return consts.StatusUnauthorized, ErrTokenInvalid.Error()
	}
}

// FromContext returns the identity the middleware attached to c.
func FromContext(c *app.RequestContext) (Identity, bool) {
	uid, ok := c.Get(ctxKeyUserID)
	if !ok {
		return Identity{}, false
	}
	id := Identity{UserID: uid.(uint64)}
	if v, ok := c.Get(ctxKeyEmail); ok {
		id.Email, _ = v.(string)
	}
	if v, ok := c.Get(ctxKeyRole); ok {
		id.Role, _ = v.(string)
	}
	return id, true
}

// WithIdentity attaches id to c. Handlers under test use it in place of the middleware.
func WithIdentity(c *app.RequestContext, id Identity) {
	c.Set(ctxKeyUserID, id.UserID)
	c.Set(ctxKeyEmail, id.Email)
	c.Set(ctxKeyRole, id.Role)
}
