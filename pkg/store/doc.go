// Package store はリレーショナルデータベースへの接続とトランザクション境界を提供する。
//
// SQLite（modernc.org/sqlite）とPostgreSQL（pgx）の2つのドライバを扱い、
// プレースホルダの差異はDialectで吸収する。書き込みはWithTxで
// begin → 変更 → commit / rollback のスコープとして表現する。
package store
