// Package camera はカメラデバイスの取得と1フレームキャプチャを担う
//
// # 責務
// - カメラデバイスの検出と利用可能性チェック
// - カメラストリーム（Stream）の取得と解放
// - 取得失敗の分類（権限なし・デバイスなし・使用中・制約不能・非対応環境）
// - V4L2デバイスからのJPEGフレーム取得
//
// # 仕様
// - フレーム取得は ffmpeg 経由（外部コマンドにキャプチャを委譲）
// - 目標解像度はベストエフォート。指定解像度で開けない場合は無制約で再試行する
// - Stream.Close は何度呼んでも安全（再入可能なティアダウン）
//
// # 前提要件
//   - ffmpeg: 画像キャプチャに使用
//     Ubuntu/Debian: sudo apt install ffmpeg
//   - videoグループへの参加: デバイスアクセス権限
//     sudo usermod -a -G video $USER
package camera
