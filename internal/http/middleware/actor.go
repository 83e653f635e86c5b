package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/prismbi/prism-backend/internal/http/response"
	"github.com/prismbi/prism-backend/internal/platform/ctxutil"
	"github.com/prismbi/prism-backend/internal/platform/logger"
)

// ActorMiddleware resolves the calling user from a bearer token and the
// preferred locale from Accept-Language. Requests without a token proceed
// as anonymous; permission decisions happen inside the pipelines.
type ActorMiddleware struct {
	log    *logger.Logger
	secret []byte
}

func NewActorMiddleware(log *logger.Logger, secret string) *ActorMiddleware {
	return &ActorMiddleware{log: log.With("Middleware", "ActorMiddleware"), secret: []byte(secret)}
}

func (am *ActorMiddleware) Attach() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := ctxutil.Actor{Locale: preferredLocale(c)}

		if tokenString := extractBearerToken(c); tokenString != "" {
			userID, err := am.parseSubject(tokenString)
			if err != nil {
				am.log.Warn("rejected bearer token", "error", err)
				response.RespondError(c, http.StatusUnauthorized, "unauthorized", err)
				c.Abort()
				return
			}
			actor.UserID = userID
		}

		c.Request = c.Request.WithContext(ctxutil.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

func (am *ActorMiddleware) parseSubject(tokenString string) (int64, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		return am.secret, nil
	})
	if err != nil {
		return 0, err
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return 0, jwt.ErrTokenInvalidClaims
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, jwt.ErrTokenInvalidSubject
	}
	return userID, nil
}

func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}

// preferredLocale returns the first entry of Accept-Language without its
// quality weight, e.g. "de-AT,de;q=0.9" -> "de-AT".
func preferredLocale(c *gin.Context) string {
	header := c.GetHeader("Accept-Language")
	if header == "" {
		return ""
	}
	first := header
	if idx := strings.IndexByte(first, ','); idx >= 0 {
		first = first[:idx]
	}
	if idx := strings.IndexByte(first, ';'); idx >= 0 {
		first = first[:idx]
	}
	return strings.TrimSpace(first)
}
