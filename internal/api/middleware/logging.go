package middleware

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs requests but ignores "broken pipe" errors caused by
// clients dropping the connection mid-response.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		for _, e := range c.Errors {
			if ne, ok := e.Err.(*net.OpError); ok {
				if se, ok := ne.Err.(*os.SyscallError); ok {
					errMsg := strings.ToLower(se.Error())
					if strings.Contains(errMsg, "broken pipe") ||
						strings.Contains(errMsg, "connection reset by peer") {
						return
					}
				}
			}
		}

		if query != "" {
			path = path + "?" + query
		}
		fmt.Printf("[GIN] %v | %3d | %13v | %15s | %-7s %#v\n",
			time.Now().Format("2006/01/02 - 15:04:05"),
			c.Writer.Status(),
			time.Since(start),
			c.ClientIP(),
			c.Request.Method,
			path,
		)
	}
}
