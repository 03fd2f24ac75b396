package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"

	"courtline/internal/domain"
	"courtline/internal/engine/auth"
	"courtline/internal/session"
)

type AuthConfig struct {
	// ServiceTokenSecret enables signed service tokens for automation
	// clients. Empty disables that path.
	ServiceTokenSecret string
	Log                *slog.Logger
}

type Principal struct {
	UserID  string
	Role    string
	Region  string
	Session domain.Session
	Source  string
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

func actorFromContext(ctx context.Context) (auth.Actor, huma.StatusError) {
	if p, ok := principalFromContext(ctx); ok && p.UserID != "" {
		return auth.Actor{ID: p.UserID, Role: p.Role, Region: p.Region}, nil
	}
	return auth.Actor{}, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
}

type serviceClaims struct {
	jwt.RegisteredClaims
	Role   string `json:"role,omitempty"`
	Region string `json:"region,omitempty"`
}

func authenticateServiceToken(token, secret string) (Principal, error) {
	if strings.TrimSpace(secret) == "" {
		return Principal{}, errors.New("service tokens not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &serviceClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return Principal{}, err
	}
	if !parsed.Valid {
		return Principal{}, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return Principal{}, errors.New("subject claim required")
	}
	role := claims.Role
	if role == "" {
		role = domain.RoleOverseer
	}
	return Principal{
		UserID: claims.Subject,
		Role:   role,
		Region: claims.Region,
		Source: "service_token",
	}, nil
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// looksLikeJWT distinguishes signed service tokens from opaque session
// tokens.
func looksLikeJWT(token string) bool {
	return strings.Count(token, ".") == 2
}

func newAuthMiddleware(basePath string, cfg AuthConfig, sessions *session.Store) func(http.Handler) http.Handler {
	open := map[string]struct{}{
		path.Join(basePath, "health"):        {},
		path.Join(basePath, "auth/login"):    {},
		path.Join(basePath, "auth/register"): {},
		path.Join(basePath, "openapi.json"):  {},
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			// Only enforce for the API base path.
			if basePath != "" && !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			if _, ok := open[req.URL.Path]; ok {
				next.ServeHTTP(w, req)
				return
			}

			authz := strings.TrimSpace(req.Header.Get("Authorization"))
			if authz == "" {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil))
				return
			}
			token, ok := bearerToken(authz)
			if !ok {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
				return
			}

			if looksLikeJWT(token) {
				principal, err := authenticateServiceToken(token, cfg.ServiceTokenSecret)
				if err != nil {
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
					return
				}
				next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), principal)))
				return
			}

			// Touching a session here is what counts as activity for
			// the inactivity timeout.
			user, sess, err := sessions.Resolve(req.Context(), token)
			if err != nil {
				code := "invalid_credentials"
				if errors.Is(err, session.ErrSessionExpired) {
					code = "session_expired"
				}
				respondStatusError(w, newAPIError(http.StatusUnauthorized, code, "invalid or expired session", nil))
				return
			}
			principal := Principal{
				UserID:  user.ID,
				Role:    user.Role,
				Region:  user.Region,
				Session: sess,
				Source:  "session",
			}
			next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), principal)))
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}
