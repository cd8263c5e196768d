package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/nao1215/fsnd/pkg/envelope"
)

// Recovery はハンドラーのパニックを500のエラーエンベロープに変換するGinミドルウェアを返す。
// パニックの値とスタックはリクエストIDとともにErrorレベルで記録する。
func Recovery(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logger.Error("ハンドラーでパニックが発生",
				"request_id", GetRequestID(c),
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			envelope.Status(c, http.StatusInternalServerError)
		}()
		c.Next()
	}
}
