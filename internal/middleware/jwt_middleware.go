package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/pesapal_api/internal/utils"
)

// JWTMiddleware guards the admin order routes with HS256 tokens. With an
// empty secret it lets every request through.
type JWTMiddleware struct {
	secret      string
	rateLimiter *InvalidAuthRateLimiter
}

func NewJWTMiddleware(secret string, rateLimiter *InvalidAuthRateLimiter) *JWTMiddleware {
	if rateLimiter == nil {
		rateLimiter = NewInvalidAuthRateLimiter(nil)
	}
	return &JWTMiddleware{secret: secret, rateLimiter: rateLimiter}
}

// Enabled reports whether tokens are required.
func (m *JWTMiddleware) Enabled() bool {
	return m.secret != ""
}

// Handle accepts the token from the Authorization header or, for EventSource
// clients that cannot set headers, from the token query parameter.
func (m *JWTMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.Enabled() {
			c.Next()
			return
		}

		token := c.Query("token")
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				m.reject(c, "UNAUTHORIZED", "Invalid authorization header")
				return
			}
			token = parts[1]
		}
		if token == "" {
			m.reject(c, "UNAUTHORIZED", "Missing authorization token")
			return
		}

		claims, err := utils.ValidateJWT(m.secret, token)
		if err != nil {
			m.reject(c, "INVALID_TOKEN", "Invalid or expired token")
			return
		}

		c.Set("admin_subject", claims.Subject)
		c.Next()
	}
}

func (m *JWTMiddleware) reject(c *gin.Context, code, message string) {
	ip := c.ClientIP()
	if !m.rateLimiter.Allow(ip) {
		log.Warn().Str("ip", ip).Msg("Too many invalid admin token attempts")
		utils.Error(c, 429, "TOO_MANY_REQUESTS", "Too many invalid authentication attempts")
		c.Abort()
		return
	}

	utils.Error(c, 401, code, message)
	c.Abort()
}

// AdminSubject returns the subject of the verified admin token, if any.
func AdminSubject(c *gin.Context) string {
	return c.GetString("admin_subject")
}
