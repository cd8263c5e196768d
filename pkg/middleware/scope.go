package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/nao1215/fsnd/pkg/authz"
	"github.com/nao1215/fsnd/pkg/envelope"
)

// grantKey はgin.Contextに認可結果を格納するキー。
const grantKey = "authz_grant"

// Authorizer は資格情報と要求スコープから認可を判定する。*authz.Evaluatorが満たす。
type Authorizer interface {
	Authorize(credential, requiredScope string) (authz.Grant, error)
}

// RequireScope はAuthorizationヘッダーのBearerトークンを検証し、
// scopeが付与されていない場合はエラーエンベロープを返して処理を中断するGinミドルウェアを返す。
// 検証に成功した場合、コンテキストにGrantを設定する。
func RequireScope(a Authorizer, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := authz.ParseBearer(c.GetHeader("Authorization"))
		if err != nil {
			envelope.Fail(c, err)
			return
		}

		grant, err := a.Authorize(token, scope)
		if err != nil {
			envelope.Fail(c, err)
			return
		}

		c.Set(grantKey, grant)
		c.Next()
	}
}

// GetGrant はGinコンテキストから認可結果を取得する。
// RequireScopeミドルウェアが事前に適用されている必要がある。
func GetGrant(c *gin.Context) (authz.Grant, bool) {
	v, ok := c.Get(grantKey)
	if !ok {
		return authz.Grant{}, false
	}
	g, ok := v.(authz.Grant)
	return g, ok
}
