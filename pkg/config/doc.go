// Package config は環境変数から各サービスの設定を読み込み、ロガーを生成する。
//
// 設定キーはサービス名を接頭辞に持つ（例: CASTING_PORT, COFFEE_AUTH_SECRET）。
package config
