// Package httpserver はHTTPサーバーの起動とグレースフルシャットダウンを提供する。
//
// 各サービスのmainはsignal.NotifyContextで生成したContextを渡し、
// シグナル受信時に処理中のリクエストを待ってから終了する。
package httpserver
