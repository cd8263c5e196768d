package crud

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/nao1215/fsnd/pkg/store"
)

// ValidationError はクライアントが不正・不足した入力を送ったことを表す。
// Statusは400（解析できない・必須項目の欠落）か422（業務ルール違反）のいずれか。
type ValidationError struct {
	// Status はHTTPステータスコード。
	Status int
	// Message は人間向けのエラーメッセージ。
	Message string
	// Fields はフィールド名から違反したルールへの対応。
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+e.Fields[k])
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(parts, ", "))
}

// BadRequest は400を表すValidationErrorを生成する。
func BadRequest(message string) *ValidationError {
	return &ValidationError{Status: http.StatusBadRequest, Message: message}
}

// Unprocessable は422を表すValidationErrorを生成する。
func Unprocessable(message string, fields map[string]string) *ValidationError {
	return &ValidationError{Status: http.StatusUnprocessableEntity, Message: message, Fields: fields}
}

// NotFoundError は該当レコードが存在しないこと、または空の結果・範囲外のページを表す。
type NotFoundError struct {
	// Entity は対象コレクション名。
	Entity string
	// ID は探索したレコードの主キー。一覧・検索の空結果では0。
	ID int64
}

func (e *NotFoundError) Error() string {
	if e.ID == 0 {
		return fmt.Sprintf("%s: 該当するレコードがありません", e.Entity)
	}
	return fmt.Sprintf("%s: id=%d のレコードが見つかりません", e.Entity, e.ID)
}

// WriteError はストアが書き込みを拒否したこと（制約違反）を表す。
type WriteError struct {
	// Entity は対象コレクション名。
	Entity string
	// Err は下層のエラー。
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s の書き込みが拒否されました: %v", e.Entity, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// StoreError は下層の永続化処理の失敗を表す。
type StoreError struct {
	// Op は失敗した操作。
	Op string
	// Err は下層のエラー。
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s に失敗: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// StatusOf はエラーに対応するHTTPステータスコードを返す。
// 分類できないエラーは500として扱う。
func StatusOf(err error) int {
	var (
		ve *ValidationError
		nf *NotFoundError
		we *WriteError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &ve):
		return ve.Status
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.As(err, &we):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// classifyRead は読み取り時のエラーを分類する。
func classifyRead(op string, err error) error {
	if err == nil {
		return nil
	}
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// classifyWrite はトランザクションから返ったエラーを分類する。
// 型付きエラーはそのまま返し、制約違反はWriteError、それ以外（パニックを含む）はStoreErrorにする。
func classifyWrite(entity string, err error) error {
	if err == nil {
		return nil
	}
	var (
		ve *ValidationError
		nf *NotFoundError
		we *WriteError
	)
	if errors.As(err, &ve) || errors.As(err, &nf) || errors.As(err, &we) {
		return err
	}
	if store.IsConstraintViolation(err) {
		return &WriteError{Entity: entity, Err: err}
	}
	return &StoreError{Op: entity + " の書き込み", Err: err}
}
