package middleware

import (
	"errors"
	"net/http"
	"strings"

	"estimator/internal/workflow"
	"estimator/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ctxUserID = "userID"
	ctxActor  = "actor"
)

// Claims is the identity carried by a token from the identity provider.
type Claims struct {
	Subject string
	Roles   []string
}

// ParseToken validates an HS256 token and extracts its subject and roles. Roles are read from a
// "roles" array, falling back to a single "role" string.
func ParseToken(tokenString string, secret []byte) (Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil {
		return Claims{}, err
	}
	if !token.Valid {
		return Claims{}, jwt.ErrTokenInvalidClaims
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, jwt.ErrTokenInvalidClaims
	}
	sub, _ := mc.GetSubject()
	if sub == "" {
		return Claims{}, errors.New("token has no subject")
	}

	var roles []string
	switch v := mc["roles"].(type) {
	case []interface{}:
		for _, r := range v {
			if s, ok := r.(string); ok && s != "" {
				roles = append(roles, s)
			}
		}
	case string:
		roles = append(roles, v)
	}
	if len(roles) == 0 {
		if role, ok := mc["role"].(string); ok && role != "" {
			roles = append(roles, role)
		}
	}
	return Claims{Subject: sub, Roles: roles}, nil
}

// CapabilityChecker decides whether a set of roles may override the approval chain.
type CapabilityChecker interface {
	CanOverride(roles []string) bool
}

type roleCapabilities struct {
	override map[string]bool
}

func NewCapabilityChecker(overrideRoles []string) CapabilityChecker {
	set := make(map[string]bool, len(overrideRoles))
	for _, r := range overrideRoles {
		set[r] = true
	}
	return &roleCapabilities{override: set}
}

func (c *roleCapabilities) CanOverride(roles []string) bool {
	for _, r := range roles {
		if c.override[r] {
			return true
		}
	}
	return false
}

// Authenticator turns bearer tokens into request actors.
type Authenticator struct {
	secret []byte
	caps   CapabilityChecker
}

func NewAuthenticator(secret []byte, caps CapabilityChecker) *Authenticator {
	return &Authenticator{secret: secret, caps: caps}
}

func (a *Authenticator) Secret() []byte { return a.secret }

// RequireAuth validates the JWT from the access_token cookie or Authorization header and stores
// the resolved actor on the context.
func (a *Authenticator) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, cookieErr := c.Cookie("access_token")
		if cookieErr != nil || tokenString == "" {
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid authorization format. Expected 'Bearer <token>'"))
				return
			}
			tokenString = parts[1]
		}

		claims, err := ParseToken(tokenString, a.secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token: "+err.Error()))
			return
		}

		c.Set(ctxUserID, claims.Subject)
		c.Set(ctxActor, workflow.Actor{
			ID:       claims.Subject,
			Roles:    claims.Roles,
			Override: a.caps.CanOverride(claims.Roles),
		})

		c.Next()
	}
}

// RequireRole only lets through actors holding one of allowedRoles. It must run after RequireAuth.
func RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
			return
		}
		for _, role := range allowedRoles {
			if actor.HasRole(role) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
	}
}

// ActorFrom returns the actor stored by RequireAuth.
func ActorFrom(c *gin.Context) (workflow.Actor, bool) {
	v, ok := c.Get(ctxActor)
	if !ok {
		return workflow.Actor{}, false
	}
	actor, ok := v.(workflow.Actor)
	return actor, ok
}

// UserID returns the token subject, or "" for anonymous requests.
func UserID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}
