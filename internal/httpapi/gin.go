package httpapi

import (
	"log/slog"
	"net/http"

	"users-graphql/internal/logging"

	"github.com/gin-gonic/gin"
)

func newGinRouter(h *Handlers) http.Handler {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(recoveryMiddleware())

	router.GET(PathRoot, gin.WrapH(h.Explorer))
	router.HEAD(PathRoot, gin.WrapH(h.Explorer))
	router.POST(PathRoot, gin.WrapH(h.GraphQL))
	router.GET(PathCompat, gin.WrapH(h.Compat))
	router.POST(PathCompat, gin.WrapH(h.Compat))
	if h.Health != nil {
		router.GET(PathHealth, gin.WrapH(h.Health))
	}
	if h.Metrics != nil {
		router.GET(PathMetrics, gin.WrapH(h.Metrics))
	}
	return router
}

// recoveryMiddleware turns a handler panic into a 500 and logs it with the
// request-scoped logger.
func recoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logging.FromContext(c.Request.Context()).Error("panic recovered",
					slog.Any("error", err),
					slog.String("method", c.Request.Method),
					slog.String("path", c.Request.URL.Path),
				)
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}
