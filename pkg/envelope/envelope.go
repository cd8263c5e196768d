package envelope

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/fsnd/pkg/authz"
	"github.com/nao1215/fsnd/pkg/crud"
)

// messages はステータスコードごとの固定メッセージ。
var messages = map[int]string{
	http.StatusBadRequest:          "Bad Request",
	http.StatusUnauthorized:        "Unauthorized",
	http.StatusForbidden:           "Forbidden",
	http.StatusNotFound:            "Not found",
	http.StatusMethodNotAllowed:    "Method Not Allowed",
	http.StatusUnprocessableEntity: "unprocessable",
	http.StatusTooManyRequests:     "Too Many Requests",
	http.StatusInternalServerError: "Internal Server Error",
}

// Message はステータスコードに対応する固定メッセージを返す。
func Message(status int) string {
	if m, ok := messages[status]; ok {
		return m
	}
	return http.StatusText(status)
}

// OK は {"success": true, ...payload} を200で返す。
func OK(c *gin.Context, payload gin.H) {
	body := gin.H{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

// Status はステータスコードのみからエラーエンベロープを返す。NoRoute・NoMethod等で使う。
func Status(c *gin.Context, status int) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   status,
		"message": Message(status),
	})
}

// Fail はエラーを分類してエラーエンベロープを返す。
// 500の場合のみエラーをgin.Contextに登録し、アクセスログ側で出力させる。
func Fail(c *gin.Context, err error) {
	status, body := Describe(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, body)
}

// Describe はエラーに対応するHTTPステータスとエンベロープを返す。
// 500では内部のエラー内容をレスポンスに含めない。
func Describe(err error) (int, gin.H) {
	var ae *authz.Error
	if errors.As(err, &ae) {
		return ae.Status, gin.H{
			"success": false,
			"error":   ae.Status,
			"code":    string(ae.Code),
			"message": ae.Message,
		}
	}

	status := crud.StatusOf(err)
	body := gin.H{
		"success": false,
		"error":   status,
		"message": Message(status),
	}
	if status >= http.StatusInternalServerError {
		return status, body
	}

	var ve *crud.ValidationError
	if errors.As(err, &ve) {
		body["detail"] = ve.Message
		if len(ve.Fields) > 0 {
			body["fields"] = ve.Fields
		}
		return status, body
	}
	body["detail"] = err.Error()
	return status, body
}
