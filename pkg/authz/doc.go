// Package authz はBearerトークン（JWT）によるスコープ認可を提供する。
//
// Evaluator.Authorizeは資格情報の形式・署名・有効期限・発行者・対象者を検証し、
// トークンのscopeクレームとpermissionsクレームから得たスコープ集合に
// 要求スコープが含まれるかを判定する。失敗は機械可読なコードと
// HTTPステータス（401または403）を持つ*Errorとして返す。
//
// 鍵はHS256の共有鍵、またはIdPのJWKSから起動時に取得したRS256公開鍵を使う。
// 判定は副作用を持たず、ログ出力も行わない。
package authz
