// Package coffee はドリンクとレシピを管理するコーヒーショップサービスを提供する。
//
// GET /drinks は認可なしで材料名を除いたshortビューを返し、
// GET /drinks-detail と書き込み系のエンドポイントはスコープを要求する。
package coffee
