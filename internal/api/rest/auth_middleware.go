package rest

import (
	"context"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/davidleathers/commission-protection-backend/internal/domain/breach"
	"github.com/davidleathers/commission-protection-backend/internal/domain/errors"
	"github.com/davidleathers/commission-protection-backend/internal/infrastructure/auth"
	"github.com/davidleathers/commission-protection-backend/internal/service/review"
)

const contextKeyClaims contextKey = "claims"

// TokenVerifier validates bearer tokens
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// AuthMiddleware authenticates bearer tokens and checks capabilities
type AuthMiddleware struct {
	verifier TokenVerifier
	base     *BaseHandler
}

// NewAuthMiddleware creates the auth middleware
func NewAuthMiddleware(verifier TokenVerifier, base *BaseHandler) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier, base: base}
}

// Authorize authenticates the request and requires capability
func (a *AuthMiddleware) Authorize(capability auth.Capability) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				a.base.writeError(w, r, errors.NewUnauthorizedError("bearer token required"))
				return
			}
			claims, err := a.verifier.Verify(token)
			if err != nil {
				a.base.writeError(w, r, err)
				return
			}
			if !claims.Can(capability) {
				a.base.writeError(w, r, errors.NewForbiddenError("missing capability "+string(capability)))
				return
			}

			trace.SpanFromContext(r.Context()).SetAttributes(
				attribute.String("user.id", claims.UserID),
				attribute.String("user.role", string(claims.Role)),
			)
			recordCaller(r, claims)
			ctx := context.WithValue(r.Context(), contextKeyClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken reads the Authorization header. Websocket upgrades may pass
// access_token in the query since browsers cannot set headers on them.
func bearerToken(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, found := strings.Cut(h, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return "", false
		}
		return strings.TrimSpace(token), true
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		if t := r.URL.Query().Get("access_token"); t != "" {
			return t, true
		}
	}
	return "", false
}

// ClaimsFrom returns the authenticated principal
func ClaimsFrom(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(contextKeyClaims).(*auth.Claims)
	return c, ok
}

// principal resolves the claims or fails unauthorized
func principal(r *http.Request) (*auth.Claims, error) {
	c, ok := ClaimsFrom(r.Context())
	if !ok {
		return nil, errors.NewUnauthorizedError("not authenticated")
	}
	return c, nil
}

// agentOf returns the caller's agent id. Admins without one may act for
// any agent through ?agentId.
func agentOf(r *http.Request) (string, error) {
	c, err := principal(r)
	if err != nil {
		return "", err
	}
	if c.AgentID != "" {
		return c.AgentID, nil
	}
	if c.IsAdmin() {
		if id := r.URL.Query().Get("agentId"); id != "" {
			return id, nil
		}
	}
	return "", errors.NewForbiddenError("no agent associated with this account")
}

// scopeOf is the breach visibility for the caller
func scopeOf(c *auth.Claims) breach.Scope {
	if c.IsAdmin() {
		return breach.AllAgents()
	}
	return breach.ForAgent(c.AgentID)
}

func actorOf(c *auth.Claims) review.Actor {
	return review.Actor{UserID: c.UserID, IsAdmin: c.IsAdmin()}
}
