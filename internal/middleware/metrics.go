package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"Idea_Portal/internal/pkg"
)

// Metrics 按路由模板记录请求耗时，未匹配路由统一记为 unmatched
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		pkg.HTTPDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
