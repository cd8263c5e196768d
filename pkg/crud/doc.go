// Package crud はエンティティコレクションに対する共通のクエリゲートウェイを提供する。
//
// Gatewayはページング付き一覧、部分一致検索、主キー取得、作成・更新・削除、
// 除外集合付きのランダム抽選を、どのエンティティにも同じ形で提供する。
// 書き込みは1操作1トランザクションで実行され、成功時は同じトランザクション内で
// 変更イベントがentity_eventsテーブルに追記される。
//
// エラーは次の4種類に分類される。
//
//   - ValidationError: 不正・不足した入力（400または422）
//   - NotFoundError: 該当なし・空の結果・範囲外のページ（404）
//   - WriteError: ストアが書き込みを拒否した（422）
//   - StoreError: 下層の永続化処理の失敗（500）
package crud
