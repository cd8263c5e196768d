package envelope

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/fsnd/pkg/crud"
)

// ParseID はパスパラメータを正の整数IDとして読み取る。
// 整数でない値は該当するルートがないものとして404にする。
func ParseID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id < 1 {
		return 0, &crud.NotFoundError{Entity: name}
	}
	return id, nil
}

// ParsePage はクエリパラメータpageを読み取る。未指定なら1ページ目。
func ParsePage(c *gin.Context, limit int) (crud.Page, error) {
	raw := c.DefaultQuery("page", "1")
	n, err := strconv.Atoi(raw)
	if err != nil {
		return crud.Page{}, crud.BadRequest("page は整数で指定してください")
	}
	return crud.NewPage(n, limit)
}

// Bind はJSONボディをdstに読み込み、入力の必須項目を検証する。
// 解析できないボディと必須項目の欠落はいずれも400になる。
func Bind(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return crud.BadRequest("JSONボディを解析できません: " + err.Error())
	}
	return crud.ValidateInput(dst)
}
