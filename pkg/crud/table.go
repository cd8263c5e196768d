package crud

import (
	"strings"

	"github.com/nao1215/fsnd/pkg/event"
)

// Record はGatewayが扱うエンティティレコードが満たすべきインターフェース。
type Record interface {
	// RecordID は整数の主キーを返す。
	RecordID() int64
	// Summary は一覧向けの要約ビューを返す。
	Summary() any
	// Detail は単体取得向けの詳細ビューを返す。
	Detail() any
}

// Scanner は*sql.Rowと*sql.Rowsに共通するScanメソッド。
type Scanner interface {
	Scan(dest ...any) error
}

// Table はエンティティコレクションとテーブルの対応を記述する。
type Table[T Record] struct {
	// Name はテーブル名。
	Name string
	// Aggregate は変更イベントに記録するコレクション種別。
	Aggregate event.AggregateType
	// Columns は主キー以外のカラム名。Scan・Valuesと同じ順序であること。
	Columns []string
	// SearchColumn はSearchとQuery.Textの対象となるテキストカラム。
	SearchColumn string
	// OrderBy は一覧の並び順。空なら "id"。
	OrderBy string
	// Scan は "id, Columns..." の順で1行を読み取る。
	Scan func(s Scanner) (T, error)
	// Values はColumnsと同じ順序でカラム値を返す。
	Values func(rec T) []any
	// WithID は主キーを設定したレコードを返す。
	WithID func(rec T, id int64) T
}

func (t Table[T]) selectColumns() string {
	return "id, " + strings.Join(t.Columns, ", ")
}

func (t Table[T]) orderBy() string {
	if t.OrderBy == "" {
		return "id"
	}
	return t.OrderBy
}

func (t Table[T]) insertSQL() string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(t.Columns)), ", ")
	return "INSERT INTO " + t.Name + " (" + strings.Join(t.Columns, ", ") + ") VALUES (" + placeholders + ") RETURNING id"
}

func (t Table[T]) updateSQL() string {
	sets := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		sets = append(sets, c+" = ?")
	}
	return "UPDATE " + t.Name + " SET " + strings.Join(sets, ", ") + " WHERE id = ?"
}

// Summaries はレコード列を一覧ビューに変換する。空の入力には空のスライスを返す。
func Summaries[T Record](items []T) []any {
	out := make([]any, 0, len(items))
	for _, it := range items {
		out = append(out, it.Summary())
	}
	return out
}

// Details はレコード列を詳細ビューに変換する。
func Details[T Record](items []T) []any {
	out := make([]any, 0, len(items))
	for _, it := range items {
		out = append(out, it.Detail())
	}
	return out
}
