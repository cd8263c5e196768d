// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// ルートごとのスコープ認可、リクエストID、アクセスログ、パニックリカバリ、
// CORS、レート制限、セキュリティヘッダー、Prometheusメトリクスなど、
// 全サービスで共通して使用するミドルウェアを含む。
// エラー応答はすべてenvelopeパッケージの形式で返す。
package middleware
