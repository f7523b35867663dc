package entgin

import (
	"context"
	"crypto/rsa"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
	jwxjwt "github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/open-rails/entitlekit/adapters/ginutil"
)

// Roles allowed to operate the override surface.
const (
	RoleSuperAdmin = "super_admin"
	RoleSupport    = "support"
)

// TokenVerifier validates an admin bearer token and extracts the actor.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (ginutil.Actor, error)
}

// JWKSVerifier validates tokens against a remote JWKS endpoint, refreshing
// keys in the background.
type JWKSVerifier struct {
	issuer   string
	audience string
	keys     jwk.Set
	skew     time.Duration
}

// NewJWKSVerifier registers the JWKS URL on a refreshing cache. ctx bounds
// the background refresh goroutine's lifetime.
func NewJWKSVerifier(ctx context.Context, issuer, audience, jwksURL string, skew time.Duration) (*JWKSVerifier, error) {
	cache := jwk.NewCache(ctx)
	if err := cache.Register(jwksURL, jwk.WithMinRefreshInterval(15*time.Minute)); err != nil {
		return nil, err
	}
	if _, err := cache.Refresh(ctx, jwksURL); err != nil {
		return nil, err
	}
	return &JWKSVerifier{
		issuer:   issuer,
		audience: audience,
		keys:     jwk.NewCachedSet(cache, jwksURL),
		skew:     skew,
	}, nil
}

func (v *JWKSVerifier) Verify(ctx context.Context, raw string) (ginutil.Actor, error) {
	tok, err := jwxjwt.ParseString(raw,
		jwxjwt.WithKeySet(v.keys),
		jwxjwt.WithValidate(true),
		jwxjwt.WithIssuer(v.issuer),
		jwxjwt.WithAudience(v.audience),
		jwxjwt.WithAcceptableSkew(v.skew),
		jwxjwt.WithContext(ctx),
	)
	if err != nil {
		return ginutil.Actor{}, err
	}
	a := ginutil.Actor{ID: tok.Subject()}
	if raw, ok := tok.Get("email"); ok {
		if s, ok := raw.(string); ok {
			a.Email = s
		}
	}
	if raw, ok := tok.Get("roles"); ok {
		a.Roles = toRoles(raw)
	}
	if a.ID == "" {
		return ginutil.Actor{}, errors.New("token missing subject")
	}
	return a, nil
}

// PinnedKeyVerifier validates tokens against a single pinned RSA public
// key, for installations without a reachable JWKS endpoint.
type PinnedKeyVerifier struct {
	issuer   string
	audience string
	key      *rsa.PublicKey
	skew     time.Duration
}

// NewPinnedKeyVerifier parses the PEM-encoded RSA public key.
func NewPinnedKeyVerifier(issuer, audience string, pemBytes []byte, skew time.Duration) (*PinnedKeyVerifier, error) {
	if len(pemBytes) == 0 {
		return nil, errors.New("empty RSA public key pem")
	}
	key, err := jwtv5.ParseRSAPublicKeyFromPEM(pemBytes)
	if err != nil {
		return nil, err
	}
	return &PinnedKeyVerifier{issuer: issuer, audience: audience, key: key, skew: skew}, nil
}

func (v *PinnedKeyVerifier) Verify(_ context.Context, raw string) (ginutil.Actor, error) {
	parser := jwtv5.NewParser(
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodRS256.Alg()}),
		jwtv5.WithIssuer(v.issuer),
		jwtv5.WithAudience(v.audience),
		jwtv5.WithLeeway(v.skew),
		jwtv5.WithExpirationRequired(),
	)
	claims := jwtv5.MapClaims{}
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwtv5.Token) (any, error) {
		return v.key, nil
	}); err != nil {
		return ginutil.Actor{}, err
	}

	a := ginutil.Actor{}
	if sub, _ := claims.GetSubject(); sub != "" {
		a.ID = sub
	}
	if s, ok := claims["email"].(string); ok {
		a.Email = s
	}
	if raw, ok := claims["roles"]; ok {
		a.Roles = toRoles(raw)
	}
	if a.ID == "" {
		return ginutil.Actor{}, errors.New("token missing subject")
	}
	return a, nil
}

func toRoles(raw any) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return strings.Split(v, ",")
	}
	return nil
}

// AdminAuth gates the override surface: a valid bearer token whose actor
// carries one of the roles, with the actor placed in the context for
// handlers. An empty roles list defaults to super_admin and support.
func AdminAuth(verifier TokenVerifier, roles ...string) gin.HandlerFunc {
	if len(roles) == 0 {
		roles = []string{RoleSuperAdmin, RoleSupport}
	}
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			ginutil.Unauthorized(c, "missing_token")
			return
		}
		actor, err := verifier.Verify(c.Request.Context(), raw)
		if err != nil {
			ginutil.Unauthorized(c, "invalid_token")
			return
		}
		allowed := false
		for _, r := range roles {
			if actor.HasRole(r) {
				allowed = true
				break
			}
		}
		if !allowed {
			ginutil.Forbidden(c, "insufficient_role")
			return
		}
		ginutil.SetActor(c, actor)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}
