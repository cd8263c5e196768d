package crud

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/nao1215/fsnd/pkg/store"
)

// DefaultPageSize は1ページあたりの既定件数。
const DefaultPageSize = 10

// Page はページ番号と固定のページサイズ。
type Page struct {
	// Number は1始まりのページ番号。
	Number int
	// Limit は1ページあたりの件数。
	Limit int
}

// NewPage はページ番号を検証してPageを生成する。
// limitが0以下の場合はDefaultPageSizeを使う。
func NewPage(number, limit int) (Page, error) {
	if number < 1 {
		return Page{}, BadRequest("page は1以上を指定してください")
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	return Page{Number: number, Limit: limit}, nil
}

// Offset は (Number-1)*Limit を返す。
func (p Page) Offset() int {
	return (p.Number - 1) * p.Limit
}

// TotalPages は総件数からページ数（切り上げ）を返す。
func (p Page) TotalPages(total int) int {
	if total <= 0 || p.Limit <= 0 {
		return 0
	}
	return (total + p.Limit - 1) / p.Limit
}

// Exceeds は要求ページが存在するページ数を超えているかを返す。
// 総件数が0の場合は範囲外とみなさない。
func (p Page) Exceeds(total int) bool {
	return total > 0 && p.Number > p.TotalPages(total)
}

// Query は一覧・検索・抽選に共通する絞り込み条件。
type Query struct {
	// Text は検索対象カラムに対する大文字小文字を区別しない部分一致条件。
	// SQLiteのLOWER()はASCIIしか変換しないため、SQLiteではASCII以外の文字は大文字小文字を区別する。
	Text string
	// Equal はカラム名から値への完全一致条件。カラム名はTableに登録されたものに限る。
	Equal map[string]any
	// Exclude は除外する主キーの集合。
	Exclude []int64
}

// where はQueryからWHERE句と引数を組み立てる。条件がなければ空文字列を返す。
func (q Query) where(dialect store.Dialect, columns []string, searchColumn string) (string, []any, error) {
	var (
		conds []string
		args  []any
	)

	if q.Text != "" {
		if searchColumn == "" {
			return "", nil, fmt.Errorf("検索カラムが設定されていません")
		}
		conds = append(conds, "LOWER("+searchColumn+") LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(foldCase(dialect, q.Text))+"%")
	}

	keys := make([]string, 0, len(q.Equal))
	for k := range q.Equal {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !slices.Contains(columns, k) {
			return "", nil, fmt.Errorf("不明なカラム: %q", k)
		}
		conds = append(conds, k+" = ?")
		args = append(args, q.Equal[k])
	}

	if len(q.Exclude) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(q.Exclude)), ", ")
		conds = append(conds, "id NOT IN ("+placeholders+")")
		for _, id := range q.Exclude {
			args = append(args, id)
		}
	}

	if len(conds) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// foldCase は検索語をdialectのLOWER()と同じ規則で小文字にする。
func foldCase(dialect store.Dialect, s string) string {
	if dialect == store.DialectPostgres {
		return strings.ToLower(s)
	}
	return strings.Map(func(r rune) rune {
		if 'A' <= r && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, s)
}

// escapeLike はLIKEのワイルドカード文字をエスケープする。
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

