package httputil

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stockflow/stockflow-backend/pkg/actor"
	"github.com/stockflow/stockflow-backend/pkg/config"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/permissions"
	"github.com/stockflow/stockflow-backend/pkg/tenant"
)

// Claims are the bearer token claims accepted by the ledger API
type Claims struct {
	jwt.RegisteredClaims
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
}

// Authenticator verifies HS256 bearer tokens and binds tenant and actor to
// the request context.
type Authenticator struct {
	config *config.JWTConfig
}

// NewAuthenticator creates an authenticator for the given JWT settings
func NewAuthenticator(cfg *config.JWTConfig) *Authenticator {
	return &Authenticator{config: cfg}
}

// Verify parses and validates a token string
func (a *Authenticator) Verify(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(a.config.Secret), nil
	}, opts...)
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.TokenExpired()
		}
		return nil, errors.TokenInvalid()
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.TokenInvalid()
	}
	if strings.TrimSpace(claims.TenantID) == "" {
		return nil, errors.Unauthorized("token carries no tenant")
	}

	return claims, nil
}

// Issue signs a token for the given actor. Used by stockctl and tests.
func (a *Authenticator) Issue(who actor.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   who.ID,
			Issuer:    a.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TenantID: who.TenantID,
		Name:     who.Name,
		Email:    who.Email,
		Role:     who.Role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(a.config.Secret))
}

// Middleware rejects requests without a valid bearer token. When the
// configuration does not require tokens, requests without an Authorization
// header fall through to TenantMiddleware.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	gateway := TenantMiddleware(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isHealthPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if header == "" && !a.config.Required {
			gateway.ServeHTTP(w, r)
			return
		}

		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			Error(w, errors.Unauthorized("missing bearer token"))
			return
		}

		claims, err := a.Verify(tokenString)
		if err != nil {
			Error(w, err)
			return
		}

		who := &actor.Actor{
			ID:       claims.Subject,
			Name:     claims.Name,
			Email:    claims.Email,
			TenantID: claims.TenantID,
			Role:     claims.Role,
		}
		recordIdentity(w, claims.TenantID, who)

		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), who)))
	})
}

func withIdentity(ctx context.Context, who *actor.Actor) context.Context {
	ctx = tenant.WithTenantID(ctx, who.TenantID)
	return actor.WithActor(ctx, who)
}

// RequirePermission rejects actors whose token role does not grant perm.
// Actors without a role come from the trusted gateway headers or from an
// unscoped token and are not restricted.
func RequirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			who := actor.FromContext(r.Context())
			if who != nil && who.Role != "" && !permissions.RoleAllows(who.Role, perm) {
				Error(w, errors.Forbidden("role "+who.Role+" lacks "+perm))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
