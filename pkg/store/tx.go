package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrTxPanic はトランザクション内の処理がパニックしたことを表す。
var ErrTxPanic = errors.New("トランザクション内でパニックが発生")

// WithTx はfnを1つのトランザクション内で実行する。
// fnがエラーを返すかパニックした場合はロールバックし、成功時のみコミットする。
// パニックはErrTxPanicでラップしたエラーとして呼び出し元に返す。
func (db *DB) WithTx(ctx context.Context, fn func(q Querier) error) (err error) {
	tx, err := db.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			err = fmt.Errorf("%w: %v", ErrTxPanic, r)
		}
	}()

	if err := fn(conn{e: tx, dialect: db.dialect}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("ロールバックに失敗: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗: %w", err)
	}
	return nil
}
