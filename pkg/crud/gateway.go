package crud

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/nao1215/fsnd/pkg/event"
	"github.com/nao1215/fsnd/pkg/store"
)

// Chooser は [0, n) から1つの添字を選ぶ。
type Chooser func(n int) int

// Option はGatewayの設定を変更する。
type Option func(*options)

type options struct {
	choose Chooser
}

// WithChooser はPickNextの抽選関数を差し替える。テストで結果を固定する際に使う。
func WithChooser(c Chooser) Option {
	return func(o *options) {
		o.choose = c
	}
}

// Gateway は1つのエンティティコレクションに対する読み書きを提供する。
// 読み取りはコネクションプールを直接使い、書き込みは1リクエスト1トランザクションで行う。
// ログ出力は行わず、型付きエラーを返す。
type Gateway[T Record] struct {
	db     *store.DB
	table  Table[T]
	choose Chooser
}

// NewGateway はGatewayを生成する。
func NewGateway[T Record](db *store.DB, table Table[T], opts ...Option) *Gateway[T] {
	o := options{choose: rand.IntN}
	for _, opt := range opts {
		opt(&o)
	}
	return &Gateway[T]{db: db, table: table, choose: o.choose}
}

// DB はGatewayが使うストアハンドルを返す。
func (g *Gateway[T]) DB() *store.DB {
	return g.db
}

// List は絞り込み後にページングした一覧と、絞り込み後の総件数を返す。
// 総件数が1件以上で要求ページがページ数を超える場合はNotFoundErrorを返す。
func (g *Gateway[T]) List(ctx context.Context, page Page, q Query) ([]T, int, error) {
	where, args, err := q.where(g.db.Dialect(), g.table.Columns, g.table.SearchColumn)
	if err != nil {
		return nil, 0, classifyRead(g.table.Name+" の一覧取得", err)
	}

	var total int
	if err := g.db.QueryRow(ctx, "SELECT COUNT(*) FROM "+g.table.Name+where, args...).Scan(&total); err != nil {
		return nil, 0, classifyRead(g.table.Name+" の件数取得", err)
	}
	if page.Exceeds(total) {
		return nil, 0, &NotFoundError{Entity: g.table.Name}
	}

	query := "SELECT " + g.table.selectColumns() + " FROM " + g.table.Name + where +
		" ORDER BY " + g.table.orderBy() + " LIMIT ? OFFSET ?"
	items, err := g.scanAll(ctx, g.db, query, append(args, page.Limit, page.Offset())...)
	if err != nil {
		return nil, 0, classifyRead(g.table.Name+" の一覧取得", err)
	}
	return items, total, nil
}

// FindWhere はページングせずに絞り込み結果をすべて返す。
func (g *Gateway[T]) FindWhere(ctx context.Context, q Query) ([]T, error) {
	where, args, err := q.where(g.db.Dialect(), g.table.Columns, g.table.SearchColumn)
	if err != nil {
		return nil, classifyRead(g.table.Name+" の検索", err)
	}
	query := "SELECT " + g.table.selectColumns() + " FROM " + g.table.Name + where + " ORDER BY " + g.table.orderBy()
	items, err := g.scanAll(ctx, g.db, query, args...)
	if err != nil {
		return nil, classifyRead(g.table.Name+" の検索", err)
	}
	return items, nil
}

// Search は検索カラムに対する部分一致で検索する。
// 1件も一致しない場合はNotFoundErrorを返す。
func (g *Gateway[T]) Search(ctx context.Context, term string) ([]T, int, error) {
	q := Query{Text: term}
	if term == "" {
		q = Query{}
	}
	items, err := g.FindWhere(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	if len(items) == 0 {
		return nil, 0, &NotFoundError{Entity: g.table.Name}
	}
	return items, len(items), nil
}

// Get は主キーでレコードを取得する。
func (g *Gateway[T]) Get(ctx context.Context, id int64) (T, error) {
	rec, err := g.GetWith(ctx, g.db, id)
	if err != nil {
		return rec, classifyRead(g.table.Name+" の取得", err)
	}
	return rec, nil
}

// GetWith は指定したQuerier（トランザクションを含む）で主キーによる取得を行う。
func (g *Gateway[T]) GetWith(ctx context.Context, q store.Querier, id int64) (T, error) {
	row := q.QueryRow(ctx, "SELECT "+g.table.selectColumns()+" FROM "+g.table.Name+" WHERE id = ?", id)
	rec, err := g.table.Scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		var zero T
		return zero, &NotFoundError{Entity: g.table.Name, ID: id}
	}
	return rec, err
}

// Exists は主キーのレコードが存在するかを返す。
func (g *Gateway[T]) Exists(ctx context.Context, q store.Querier, id int64) (bool, error) {
	var n int
	if err := q.QueryRow(ctx, "SELECT COUNT(*) FROM "+g.table.Name+" WHERE id = ?", id).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// Create はレコードを検証し、トランザクション内で挿入する。
func (g *Gateway[T]) Create(ctx context.Context, rec T) (T, error) {
	if err := ValidateRecord(rec); err != nil {
		return rec, err
	}

	err := g.db.WithTx(ctx, func(q store.Querier) error {
		var id int64
		if err := q.QueryRow(ctx, g.table.insertSQL(), g.table.Values(rec)...).Scan(&id); err != nil {
			return err
		}
		rec = g.table.WithID(rec, id)
		return g.record(ctx, q, id, event.TypeCreated, rec.Detail())
	})
	if err != nil {
		var zero T
		return zero, classifyWrite(g.table.Name, err)
	}
	return rec, nil
}

// Update は主キーのレコードを読み込み、patchで指定フィールドのみを書き換えて保存する。
// 検証に失敗した場合はロールバックし、保存済みのレコードは変更されない。
func (g *Gateway[T]) Update(ctx context.Context, id int64, patch func(rec *T)) (T, error) {
	var updated T
	err := g.db.WithTx(ctx, func(q store.Querier) error {
		cur, err := g.GetWith(ctx, q, id)
		if err != nil {
			return err
		}
		patch(&cur)
		cur = g.table.WithID(cur, id)
		if err := ValidateRecord(cur); err != nil {
			return err
		}

		args := append(g.table.Values(cur), id)
		if _, err := q.Exec(ctx, g.table.updateSQL(), args...); err != nil {
			return err
		}
		updated = cur
		return g.record(ctx, q, id, event.TypeUpdated, cur.Detail())
	})
	if err != nil {
		var zero T
		return zero, classifyWrite(g.table.Name, err)
	}
	return updated, nil
}

// Delete は主キーのレコードを削除し、削除した主キーを返す。
// 存在しない主キーは何度呼んでもNotFoundErrorになる。
func (g *Gateway[T]) Delete(ctx context.Context, id int64) (int64, error) {
	err := g.db.WithTx(ctx, func(q store.Querier) error {
		res, err := q.Exec(ctx, "DELETE FROM "+g.table.Name+" WHERE id = ?", id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return &NotFoundError{Entity: g.table.Name, ID: id}
		}
		return g.record(ctx, q, id, event.TypeDeleted, event.DeletedData{ID: id})
	})
	if err != nil {
		return 0, classifyWrite(g.table.Name, err)
	}
	return id, nil
}

// PickNext は絞り込み条件からexcludedを除いた候補集合から1件を一様に選ぶ。
// 候補が空の場合はエラーではなく (ゼロ値, false, nil) を返す。
func (g *Gateway[T]) PickNext(ctx context.Context, q Query, excluded []int64) (T, bool, error) {
	var zero T
	q.Exclude = append(append([]int64(nil), q.Exclude...), excluded...)
	eligible, err := g.FindWhere(ctx, q)
	if err != nil {
		return zero, false, err
	}
	if len(eligible) == 0 {
		return zero, false, nil
	}
	return eligible[g.choose(len(eligible))], true, nil
}

// Tx はfnを書き込みトランザクション内で実行し、失敗をGatewayと同じ規則で分類する。
// 複数テーブルにまたがる書き込み（関連付け等）に使う。
func (g *Gateway[T]) Tx(ctx context.Context, fn func(q store.Querier) error) error {
	return classifyWrite(g.table.Name, g.db.WithTx(ctx, fn))
}

// Record はトランザクション内で変更イベントを追記する。
func (g *Gateway[T]) Record(ctx context.Context, q store.Querier, id int64, typ event.Type, data any) error {
	return g.record(ctx, q, id, typ, data)
}

func (g *Gateway[T]) record(ctx context.Context, q store.Querier, id int64, typ event.Type, data any) error {
	if g.table.Aggregate == "" {
		return nil
	}
	ev, err := event.New(id, g.table.Aggregate, typ, data)
	if err != nil {
		return err
	}
	return event.Append(ctx, q, ev)
}

func (g *Gateway[T]) scanAll(ctx context.Context, q store.Querier, query string, args ...any) ([]T, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := make([]T, 0)
	for rows.Next() {
		rec, err := g.table.Scan(rows)
		if err != nil {
			return nil, fmt.Errorf("%s の読み取りに失敗: %w", g.table.Name, err)
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}
