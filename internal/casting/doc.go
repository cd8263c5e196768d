// Package casting は俳優と映画を管理するキャスティングサービスを提供する。
//
// すべてのエンドポイントはBearerトークンを要求し、ルートごとに宣言したスコープ
// （get:actors, post:movies 等）が付与されている場合のみ処理する。
// 映画と俳優はperformancesテーブルで関連付けられ、映画の詳細には出演者が含まれる。
package casting
