// Package envelope はHTTPレスポンスのエンベロープとリクエストパラメータの読み取りを提供する。
//
// 成功時は {"success": true, ...}、失敗時は
// {"success": false, "error": <status>, "message": "..."} の形で返す。
// crudとauthzの型付きエラーをステータスコードに対応付ける。
package envelope
