package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"guidedesk/internal/auth"
	"guidedesk/internal/utils"
	"guidedesk/pkg/logger"
)

// AuthRequired verifies the bearer token and stores the guide's session on
// the context. Browsers cannot set headers on a websocket handshake, so the
// token may also arrive as the "token" query parameter.
func AuthRequired(verifier auth.Verifier, log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.Discard()
	}
	audit := logger.NewAuditLoggerFrom(log)

	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			utils.UnauthorizedResponse(c, "Authorization header required")
			c.Abort()
			return
		}

		session, err := verifier.Verify(c.Request.Context(), tokenString)
		if err != nil {
			audit.LogAuthEvent("token_rejected", "", c.ClientIP(), c.Request.UserAgent(), false)
			log.WithError(err).Debug("Token verification failed")
			utils.UnauthorizedResponse(c, utils.ErrInvalidToken)
			c.Abort()
			return
		}

		c.Set(utils.ContextGuideID, session.UID)
		c.Set(utils.ContextSession, session)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), logger.GuideIDKey, session.UID))

		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		token := strings.TrimPrefix(header, "Bearer ")
		if token == header || token == "" {
			return "", false
		}
		return token, true
	}
	if token := c.Query("token"); token != "" {
		return token, true
	}
	return "", false
}

// SessionFromContext returns the session AuthRequired stored.
func SessionFromContext(c *gin.Context) (auth.Session, bool) {
	value, exists := c.Get(utils.ContextSession)
	if !exists {
		return auth.Session{}, false
	}
	session, ok := value.(auth.Session)
	if !ok || session.IsZero() {
		return auth.Session{}, false
	}
	return session, true
}
