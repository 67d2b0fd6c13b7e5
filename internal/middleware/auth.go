package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/SscSPs/money_sync_app/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// AuthMiddleware admits requests carrying a bearer token signed with jwtSecret.
// The token subject is stored on the request context and on its logger.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := GetLoggerFromCtx(c.Request.Context())

		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			reject(c, logger, "Authorization header must be Bearer {token}", nil)
			return
		}

		claims, err := utils.ParseAndValidateJWT(token, jwtSecret)
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			reject(c, logger, "Token has expired", err)
			return
		case err != nil:
			reject(c, logger, "Invalid token", err)
			return
		case claims.Subject == "":
			reject(c, logger, "Invalid token claims", nil)
			return
		}

		ctx := WithUserID(c.Request.Context(), claims.Subject)
		ctx = WithLogger(ctx, logger.With(slog.String("subject", claims.Subject)))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func reject(c *gin.Context, logger *slog.Logger, msg string, err error) {
	attrs := []any{slog.String("reason", msg)}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	logger.Warn("Rejected unauthenticated request", attrs...)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}
