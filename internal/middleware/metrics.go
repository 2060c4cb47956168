package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/user/movie-explorer/internal/metrics"
)

// Metrics 记录请求耗时和状态码，route 使用注册时的路由模板
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		metrics.TrackActiveRequest(true)
		defer metrics.TrackActiveRequest(false)

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordAPIRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
