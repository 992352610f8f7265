// Package server は、スキャナ操作用のHTTP APIを提供します。
//
// このパッケージは、HTTPサーバーの起動、ルーティング、
// スキャナ制御リクエストの処理を担当します。
//
// 責務:
//   - HTTPサーバーの起動とグレースフルシャットダウン
//   - スキャナの開始・停止・一時停止・再開の受け付け
//   - 画像アップロードと手入力バーコードの判定API中継
//   - 最新のスキャナ状態とスキャン履歴の提供
//
// 仕様:
//   - ルーティングはgin-gonic/ginを使用
//   - シャットダウン時はスキャナとポーリングも合わせて解放する
package server
