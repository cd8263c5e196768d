// Package booking は会場・アーティスト・公演を管理する公演予約サービスを提供する。
//
// 会場とアーティストの詳細には、基準時刻より前の公演と後の公演が分けて含まれる。
// 認可は行わず、すべてのエンドポイントが公開される。
package booking
