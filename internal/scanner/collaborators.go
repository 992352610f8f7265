package scanner

import (
	"context"
	"log"
	"os"
	"os/exec"

	"github.com/ravikarmata24-ai/Bharatscan/internal/camera"
	"github.com/ravikarmata24-ai/Bharatscan/internal/scanapi"
)

// Stream はコントローラが所有するカメラキャプチャセッションを表す
type Stream interface {
	// CaptureJPEG は現在のフレームをJPEGとして取得する
	CaptureJPEG(ctx context.Context) ([]byte, error)

	// Close はストリームを解放する。再入可能であること
	Close() error

	// Active はストリームが有効かどうかを返す
	Active() bool
}

// StreamOpener はカメラストリームの取得を抽象化する
type StreamOpener interface {
	// Open はカメラストリームを取得する
	// 失敗はcamera.AcquireErrorとして分類されていることが望ましい
	Open(ctx context.Context) (Stream, error)
}

// Submitter はフレームの判定依頼と結果URLの組み立てを抽象化する
type Submitter interface {
	// ScanFrame はフレームを送信して判定結果を受け取る
	// 通信・解析の失敗はerrorとして返る
	ScanFrame(ctx context.Context, frame []byte) (scanapi.Attempt, error)

	// ResultURL はバーコードに対応する結果ページのURLを返す
	ResultURL(code string) string
}

// StatusLevel はスキャナ状態通知の種別を表す
type StatusLevel string

const (
	LevelIdle     StatusLevel = "idle"
	LevelStarting StatusLevel = "starting"
	LevelActive   StatusLevel = "active"
	LevelSuccess  StatusLevel = "success"
	LevelNotice   StatusLevel = "notice"
	LevelError    StatusLevel = "error"
)

// StatusUpdate は利用者向けの状態表示1件を表す
type StatusUpdate struct {
	Level   StatusLevel `json:"level"`
	Message string      `json:"message"`
}

// StatusSink はスキャナ状態の表示先を抽象化する
type StatusSink interface {
	Publish(update StatusUpdate)
}

// LogStatusSink は状態をログに出力するStatusSink実装
type LogStatusSink struct{}

// Publish は状態をログに出力する
func (LogStatusSink) Publish(update StatusUpdate) {
	log.Printf("スキャナ状態 [%s]: %s", update.Level, update.Message)
}

// Beeper は検出成功時の通知音を抽象化する
type Beeper interface {
	Beep()
}

// TerminalBeeper は端末のベル文字で通知音を鳴らすBeeper実装
type TerminalBeeper struct{}

// Beep はベル文字を出力する
func (TerminalBeeper) Beep() {
	_, _ = os.Stdout.Write([]byte("\a"))
}

// NullBeeper は何もしないBeeper実装
type NullBeeper struct{}

// Beep は何もしない
func (NullBeeper) Beep() {}

// Navigator は結果ページへの遷移を抽象化する
type Navigator interface {
	Navigate(resultURL string)
}

// LogNavigator は遷移先URLをログに出力するNavigator実装
type LogNavigator struct{}

// Navigate は遷移先URLをログに出力する
func (LogNavigator) Navigate(resultURL string) {
	log.Printf("結果ページへ遷移: %s", resultURL)
}

// BrowserNavigator は外部コマンドでブラウザを開くNavigator実装
type BrowserNavigator struct {
	// Command が空の場合は xdg-open を使用する
	Command string
}

// Navigate はブラウザで結果ページを開く
func (n BrowserNavigator) Navigate(resultURL string) {
	command := n.Command
	if command == "" {
		command = "xdg-open"
	}

	cmd := exec.Command(command, resultURL)
	if err := cmd.Start(); err != nil {
		log.Printf("ブラウザの起動に失敗: %v (URL: %s)", err, resultURL)
		return
	}
	// プロセスの終了は待たない（ゾンビ化を防ぐため回収のみ行う）
	go func() { _ = cmd.Wait() }()
}

// Recorder は検出成功の履歴記録を抽象化する
type Recorder interface {
	Record(ctx context.Context, code string, isIndian bool) error
}

// RecorderFunc は関数をRecorderとして使うためのアダプタ
type RecorderFunc func(ctx context.Context, code string, isIndian bool) error

// Record は関数を呼び出す
func (f RecorderFunc) Record(ctx context.Context, code string, isIndian bool) error {
	return f(ctx, code, isIndian)
}

// DeviceOpener はcameraパッケージに委譲するStreamOpener実装
type DeviceOpener struct {
	Device   string
	Settings camera.Settings
}

// Open はデバイスからカメラストリームを取得する
func (d DeviceOpener) Open(ctx context.Context) (Stream, error) {
	stream, err := camera.Open(ctx, d.Device, d.Settings)
	if err != nil {
		return nil, err
	}
	return stream, nil
}
