package middleware

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
)

// AccessLog はリクエストごとに1行のアクセスログを出力するGinミドルウェアを返す。
// 500以上のレスポンスではハンドラが登録したエラーもあわせて出力する。
// 認可済みのリクエストではトークンの主体も出力する。
func AccessLog(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		kv := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", time.Since(start),
			"request_id", GetRequestID(c),
		}
		if grant, ok := GetGrant(c); ok {
			kv = append(kv, "subject", grant.Subject)
		}
		switch {
		case status >= http.StatusInternalServerError:
			if len(c.Errors) > 0 {
				kv = append(kv, "error", c.Errors.String())
			}
			logger.Error("request", kv...)
		case status >= http.StatusBadRequest:
			logger.Warn("request", kv...)
		default:
			logger.Info("request", kv...)
		}
	}
}
