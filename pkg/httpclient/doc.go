// Package httpclient はJSON APIを呼び出すHTTPクライアントを提供する。
//
// 認可用のJWKS（公開鍵セット）の取得と、fsndctlから各サービスを
// 呼び出す処理で共通して使用する。
package httpclient
