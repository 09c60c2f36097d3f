package middlewares

import (
	"strconv"

	"bitbucket.org/mmdatafocus/crm_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionMiddleware copies caller identity from the gateway headers into the
// request context. The upstream gateway has already authenticated the caller;
// this service only needs to know who it is acting for.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if businessId := c.Request.Header.Get("X-Business-Id"); businessId != "" {
			ctx = utils.SetBusinessIdInContext(ctx, businessId)
		}
		if userIdHeader := c.Request.Header.Get("X-User-Id"); userIdHeader != "" {
			if userId, err := strconv.Atoi(userIdHeader); err == nil {
				ctx = utils.SetUserIdInContext(ctx, userId)
			}
		}
		if userName := c.Request.Header.Get("X-User-Name"); userName != "" {
			ctx = utils.SetUserNameInContext(ctx, userName)
		}

		correlationId := c.Request.Header.Get("X-Correlation-Id")
		if correlationId == "" {
			correlationId = uuid.NewString()
		}
		ctx = utils.SetCorrelationIdInContext(ctx, correlationId)
		c.Writer.Header().Set("X-Correlation-Id", correlationId)

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
