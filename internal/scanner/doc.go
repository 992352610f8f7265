// Package scanner はカメラポーリングによるバーコードスキャンの制御を担う
//
// # 責務
// - カメラストリームのライフサイクル管理（取得・解放）
// - 一定間隔（既定1.5秒）でのフレームキャプチャとAPI送信
// - 送信の単一飛行保証（同時に2つのスキャン試行を発行しない）
// - 検出成功時のポーリング停止・通知音・結果ページへの遅延遷移
// - 明示停止・一時停止・シャットダウンが合流する再入可能なティアダウン
//
// # 状態遷移
//   - Idle → Starting → Active → Detected → Idle（遷移でセッション終了）
//   - Active → Idle（明示停止・シャットダウン）
//   - Starting → Idle（取得失敗）
//
// # 仕様
// - カメラ取得失敗は分類済みメッセージでStatusSinkに通知され、自動では再試行しない
// - サイレントモード（バックグラウンドのポーリング）では否定結果も通信失敗も
//   利用者に通知しない。ログにのみ残し、次のティックで暗黙に再試行する
// - Suspendはポーリングのみ止め、ストリームは開いたまま維持する。
//   Resumeはストリームが開いている場合のみポーリングを再開する
package scanner
