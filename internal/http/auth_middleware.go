package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/kycdesk/kycdesk/internal/domain"
)

type authContextKey string

const contextKeyAuth authContextKey = "kyc-auth-identity"

const (
	msgNoToken    = "No token, authorization denied"
	msgAdminsOnly = "Access denied: Admins only"
)

type contextSetter interface {
	SetContext(context.Context)
}

// requireAuth ensures the request carries a valid bearer token before invoking the handler.
func (r *Router) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		token, err := bearerToken(req.Header.Get("Authorization"))
		if err != nil {
			r.logger.Warn("authorization header invalid", "error", err, "path", req.URL.Path)
			writeMessage(w, http.StatusUnauthorized, msgNoToken)
			return
		}
		identity, err := r.auth.Authorize(token)
		if err != nil {
			r.writeError(w, req, err)
			return
		}
		ctx := context.WithValue(req.Context(), contextKeyAuth, identity)
		if setter, ok := w.(contextSetter); ok {
			setter.SetContext(ctx)
		}
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

// requireRole admits only identities holding role. It must be mounted after requireAuth.
func (r *Router) requireRole(role domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			identity, ok := identityFromContext(req.Context())
			if !ok {
				r.logger.Error("auth context missing for role check", "path", req.URL.Path)
				writeMessage(w, http.StatusInternalServerError, msgServerError)
				return
			}
			if identity.Role != role {
				r.logger.Warn("role check failed", "user_id", identity.UserID, "role", identity.Role, "required", role)
				writeMessage(w, http.StatusForbidden, msgAdminsOnly)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

// identityFromContext extracts the authenticated identity from ctx.
func identityFromContext(ctx context.Context) (domain.Identity, bool) {
	value := ctx.Value(contextKeyAuth)
	if value == nil {
		return domain.Identity{}, false
	}
	identity, ok := value.(domain.Identity)
	return identity, ok
}

func bearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header format")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("empty bearer token")
	}
	return token, nil
}
