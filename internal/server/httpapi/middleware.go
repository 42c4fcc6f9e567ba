package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dzaytsev/credkeeper/internal/server/auth"
	"github.com/dzaytsev/credkeeper/internal/server/models"
)

const claimsContextKey = "claims"

// ClaimsFromContext returns the verified claims attached by requireAuth.
func ClaimsFromContext(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(claimsContextKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}

// requireAuth verifies the bearer token and attaches its claims, or
// short-circuits the request. It never consults the store or cache.
// A missing header is 403, anything unparseable or unverifiable is 400.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			s.metrics.AuthFailuresTotal.Inc()
			c.AbortWithStatusJSON(http.StatusForbidden,
				gin.H{"error": "Access denied. No token provided."})
			return
		}

		scheme, token, found := strings.Cut(header, " ")
		if !found || scheme != "Bearer" || token == "" {
			s.metrics.AuthFailuresTotal.Inc()
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid token"})
			return
		}

		claims, err := auth.ParseToken(token, s.jwtSecret)
		if err != nil {
			s.metrics.AuthFailuresTotal.Inc()
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(claimsContextKey, claims)
		c.Next()
	}
}

// requireAdmin rejects authenticated callers whose claims carry a non-admin
// role. Claims are a snapshot from issuance time: a demoted admin keeps
// access until the token expires.
func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFromContext(c)
		if !ok || claims.Role != models.RoleAdmin {
			s.metrics.AuthFailuresTotal.Inc()
			c.AbortWithStatusJSON(http.StatusForbidden,
				gin.H{"error": "Access denied. Only admins can access this route."})
			return
		}
		c.Next()
	}
}
