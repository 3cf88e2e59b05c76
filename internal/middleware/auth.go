package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/dentist-booking/internal/models"
	"github.com/harentsoaR/dentist-booking/internal/services"
)

const (
	ctxUserID   = "userID"
	ctxUserRole = "userRole"
)

var errMalformedAuth = errors.New("malformed authorization header")

// TokenVerifier checks a bearer token's signature and expiry.
type TokenVerifier interface {
	Verify(token string) (services.Principal, error)
}

type Route struct {
	Method string
	Path   string
}

// Rule restricts every path under Prefix to Roles.
type Rule struct {
	Prefix string
	Roles  []models.Role
}

type GateConfig struct {
	Public []Route
	Rules  []Rule
}

// DefaultPublicRoutes need no token.
var DefaultPublicRoutes = []Route{
	{http.MethodGet, "/"},
	{http.MethodGet, "/login"},
	{http.MethodGet, "/healthz"},
	{http.MethodPost, "/appointments"},
	{http.MethodPost, "/auth/login"},
	{http.MethodPost, "/auth/logout"},
}

var DefaultRules = []Rule{
	{Prefix: "/users", Roles: []models.Role{models.RoleAdmin}},
	{Prefix: "/appointments", Roles: []models.Role{models.RoleAdmin, models.RoleDentist, models.RoleStaff, models.RolePatient}},
	{Prefix: "/auth/me", Roles: []models.Role{models.RoleAdmin, models.RoleDentist, models.RoleStaff, models.RolePatient}},
}

// underPrefix matches prefix itself and anything below it, but not "/usersx" for "/users".
func underPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/' || strings.HasSuffix(prefix, "/")
}

func (g GateConfig) isPublic(method, path string) bool {
	for _, r := range g.Public {
		if r.Method == method && r.Path == path {
			return true
		}
	}
	return false
}

// rule returns the longest matching rule, if any.
func (g GateConfig) rule(path string) (Rule, bool) {
	var (
		best  Rule
		found bool
	)
	for _, r := range g.Rules {
		if underPrefix(path, r.Prefix) && (!found || len(r.Prefix) > len(best.Prefix)) {
			best, found = r, true
		}
	}
	return best, found
}

func (r Rule) allows(role models.Role) bool {
	for _, allowed := range r.Roles {
		if allowed == role {
			return true
		}
	}
	return false
}

// bearerToken extracts the token from "Bearer <token>". The scheme is case
// insensitive; anything else is rejected.
func bearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errMalformedAuth
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", errMalformedAuth
	}
	return token, nil
}

// AuthMiddleware is the single gate in front of every non-public request. It
// authenticates the bearer token and applies the coarse path/role table;
// record-level checks stay with the services.
func AuthMiddleware(verifier TokenVerifier, cfg GateConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if cfg.isPublic(c.Request.Method, path) {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}
		tokenString, err := bearerToken(authHeader)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header must be: Bearer <token>"})
			return
		}
		p, err := verifier.Verify(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		if rule, ok := cfg.rule(path); ok && !rule.allows(p.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}

		SetPrincipal(c, p)
		c.Next()
	}
}

func SetPrincipal(c *gin.Context, p services.Principal) {
	c.Set(ctxUserID, p.UserID)
	c.Set(ctxUserRole, p.Role)
}

// PrincipalFrom returns the identity the gate attached to the request.
func PrincipalFrom(c *gin.Context) (services.Principal, bool) {
	id, ok := c.Get(ctxUserID)
	if !ok {
		return services.Principal{}, false
	}
	role, _ := c.Get(ctxUserRole)
	userID, _ := id.(int64)
	r, _ := role.(models.Role)
	return services.Principal{UserID: userID, Role: r}, userID != 0
}
