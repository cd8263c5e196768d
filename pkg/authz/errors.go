package authz

import (
	"errors"
	"fmt"
	"net/http"
)

// Code は認可エラーの機械可読なコード。
type Code string

const (
	// CodeMissingToken は資格情報が存在しないことを表す。
	CodeMissingToken Code = "missing_token"
	// CodeInvalidHeader はAuthorizationヘッダーまたはトークンヘッダーが不正であることを表す。
	CodeInvalidHeader Code = "invalid_header"
	// CodeInvalidSignature は署名の検証に失敗したことを表す。
	CodeInvalidSignature Code = "invalid_signature"
	// CodeTokenExpired はトークンの有効期限切れを表す。
	CodeTokenExpired Code = "token_expired"
	// CodeInvalidClaims は発行者・対象者などのクレームが一致しないことを表す。
	CodeInvalidClaims Code = "invalid_claims"
	// CodeInsufficientScope は要求スコープが付与されていないことを表す。
	CodeInsufficientScope Code = "insufficient_scope"
)

// Error は認可処理の失敗を表す。StatusはHTTPステータス（401または403）。
type Error struct {
	// Code は機械可読なエラーコード。
	Code Code
	// Status はHTTPステータスコード。
	Status int
	// Message は人間向けのエラーメッセージ。
	Message string
	// Err は下層のエラー。
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is はCodeが一致する*Errorを同一とみなす。errors.Is(err, ErrTokenExpired) のように使う。
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// 判定用のセンチネル。
var (
	ErrMissingToken      = &Error{Code: CodeMissingToken, Status: http.StatusUnauthorized, Message: "Authorizationヘッダーが必要です"}
	ErrInvalidHeader     = &Error{Code: CodeInvalidHeader, Status: http.StatusUnauthorized, Message: "トークンの形式が不正です"}
	ErrInvalidSignature  = &Error{Code: CodeInvalidSignature, Status: http.StatusUnauthorized, Message: "トークンの署名が不正です"}
	ErrTokenExpired      = &Error{Code: CodeTokenExpired, Status: http.StatusUnauthorized, Message: "トークンの有効期限が切れています"}
	ErrInvalidClaims     = &Error{Code: CodeInvalidClaims, Status: http.StatusUnauthorized, Message: "発行者または対象者が一致しません"}
	ErrInsufficientScope = &Error{Code: CodeInsufficientScope, Status: http.StatusForbidden, Message: "権限が不足しています"}
)

// wrap はセンチネルを複製し、下層のエラーを付与する。
func wrap(sentinel *Error, err error) *Error {
	e := *sentinel
	e.Err = err
	return &e
}
