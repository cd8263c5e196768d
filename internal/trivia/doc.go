// Package trivia はクイズの問題とカテゴリを提供するクイズサービスを実装する。
//
// 問題一覧のページング、問題文の検索、カテゴリ別の一覧、
// 出題済みの問題を除いたランダム出題（POST /quizzes）を提供する。
// すべてのエンドポイントは認可なしで利用できる。
package trivia
