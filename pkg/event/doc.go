// Package event はレコード変更イベントの型定義と永続化を提供する。
//
// 作成・更新・削除といった書き込みが成功すると、同じトランザクション内で
// entity_eventsテーブルにイベントが追記される。ロールバックされた書き込みは
// イベントも残さない。
package event
