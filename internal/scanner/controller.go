package scanner

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ravikarmata24-ai/Bharatscan/internal/camera"
	"github.com/ravikarmata24-ai/Bharatscan/internal/scanapi"
)

// State はコントローラの動作状態を表す
type State string

const (
	StateIdle     State = "idle"     // 停止中
	StateStarting State = "starting" // カメラ取得中
	StateActive   State = "active"   // ポーリング中
	StateDetected State = "detected" // 検出済み、遷移待ち
)

// 既定のタイミング設定
const (
	DefaultPollInterval  = 1500 * time.Millisecond
	DefaultNavigateDelay = 900 * time.Millisecond
)

// Config はControllerの動作設定
// ゼロ値のフィールドには既定値が適用される
type Config struct {
	PollInterval  time.Duration
	NavigateDelay time.Duration

	Status    StatusSink
	Beeper    Beeper
	Navigator Navigator
	Recorder  Recorder // nilの場合は履歴を記録しない
}

// Controller はカメラポーリングスキャンのライフサイクル全体を制御する
//
// ストリームとポーリングループはControllerが排他的に所有し、
// 必ず一緒に解放される（どちらか一方だけのリークは起きない）
type Controller struct {
	opener StreamOpener
	client Submitter

	interval time.Duration
	navDelay time.Duration

	status    StatusSink
	beeper    Beeper
	navigator Navigator
	recorder  Recorder

	mu          sync.Mutex
	state       State
	stream      Stream
	stopCh      chan struct{}
	loopRunning bool
	inFlight    bool // 単一飛行ガード：送信中の重複送信を防ぐ
	navTimer    *time.Timer
	wg          sync.WaitGroup
}

// NewController は新しいControllerを作成する
func NewController(opener StreamOpener, client Submitter, cfg Config) *Controller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.NavigateDelay <= 0 {
		cfg.NavigateDelay = DefaultNavigateDelay
	}
	if cfg.Status == nil {
		cfg.Status = LogStatusSink{}
	}
	if cfg.Beeper == nil {
		cfg.Beeper = TerminalBeeper{}
	}
	if cfg.Navigator == nil {
		cfg.Navigator = LogNavigator{}
	}

	return &Controller{
		opener:    opener,
		client:    client,
		interval:  cfg.PollInterval,
		navDelay:  cfg.NavigateDelay,
		status:    cfg.Status,
		beeper:    cfg.Beeper,
		navigator: cfg.Navigator,
		recorder:  cfg.Recorder,
		state:     StateIdle,
	}
}

// State は現在の状態を返す
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Polling はポーリングループが動作中かどうかを返す
func (c *Controller) Polling() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loopRunning
}

// HasStream はストリームを保持しているかどうかを返す
func (c *Controller) HasStream() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream != nil
}

// Start はカメラストリームを取得してポーリングを開始する
//
// 取得失敗は分類済みメッセージでStatusSinkに通知され、このメソッドから
// errorとして伝播することはない。失敗後はストリームもループも残らない
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		c.status.Publish(StatusUpdate{Level: LevelNotice, Message: "Camera is already running."})
		return
	}
	c.state = StateStarting
	c.mu.Unlock()

	c.status.Publish(StatusUpdate{Level: LevelStarting, Message: "Starting camera..."})

	stream, err := c.opener.Open(ctx)
	if err != nil {
		ae := camera.AsAcquireError(err)
		log.Printf("カメラ取得に失敗: %v", err)

		c.mu.Lock()
		c.state = StateIdle
		c.mu.Unlock()

		c.status.Publish(StatusUpdate{Level: LevelError, Message: ae.Message()})
		return
	}

	c.mu.Lock()
	if c.state != StateStarting {
		// 取得中にStopが割り込んだ場合はストリームを即座に解放する
		c.mu.Unlock()
		_ = stream.Close()
		return
	}
	c.stream = stream
	c.state = StateActive
	c.startLoopLocked(ctx)
	c.mu.Unlock()

	c.status.Publish(StatusUpdate{Level: LevelActive, Message: "Camera active. Point it at a barcode."})
}

// Stop はポーリングとストリームをまとめて解放し、状態をアイドルに戻す
// 何度呼んでも安全。解放するものがなかった場合は状態表示を変更せず、
// 直前の表示（取得失敗の案内など）がそのまま残る
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.navTimer != nil {
		c.navTimer.Stop()
		c.navTimer = nil
	}
	released := c.loopRunning || c.stream != nil || c.state != StateIdle
	c.stopLoopLocked()
	if c.stream != nil {
		_ = c.stream.Close()
		c.stream = nil
	}
	c.state = StateIdle
	c.mu.Unlock()

	// ループゴルーチンの終了を待機
	c.wg.Wait()

	if released {
		c.status.Publish(StatusUpdate{Level: LevelIdle, Message: "Camera stopped."})
	}
}

// Suspend はポーリングのみ停止する。ストリームは開いたまま維持される
// （タブ非表示に相当する一時停止）
func (c *Controller) Suspend() {
	c.mu.Lock()
	running := c.loopRunning
	c.stopLoopLocked()
	c.mu.Unlock()

	c.wg.Wait()

	if running {
		c.status.Publish(StatusUpdate{Level: LevelNotice, Message: "Scanning paused."})
	}
}

// Resume はストリームが開いたままの場合のみポーリングを再開する
// カメラ権限の再取得は行わない
func (c *Controller) Resume(ctx context.Context) {
	c.mu.Lock()
	if c.state != StateActive || c.stream == nil || c.loopRunning {
		c.mu.Unlock()
		return
	}
	c.startLoopLocked(ctx)
	c.mu.Unlock()

	c.status.Publish(StatusUpdate{Level: LevelActive, Message: "Camera active. Point it at a barcode."})
}

// CaptureAndScan は現在のフレームを1回キャプチャして判定APIに送信する
//
// ストリームがない場合は何もしない（silentでなければ通知のみ行う）。
// 前回の送信が未完了の間は新しい送信を発行しない（単一飛行保証）
func (c *Controller) CaptureAndScan(ctx context.Context, silent bool) {
	c.mu.Lock()
	if c.state != StateActive || c.stream == nil {
		c.mu.Unlock()
		if !silent {
			c.status.Publish(StatusUpdate{Level: LevelNotice, Message: "Camera is not active. Start the camera first."})
		}
		return
	}
	if c.inFlight {
		c.mu.Unlock()
		return
	}
	c.inFlight = true
	stream := c.stream
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	frame, err := stream.CaptureJPEG(ctx)
	if err != nil {
		c.transportFailure(silent, fmt.Errorf("フレームキャプチャに失敗: %w", err))
		return
	}

	attempt, err := c.client.ScanFrame(ctx, frame)
	if err != nil {
		c.transportFailure(silent, err)
		return
	}

	switch attempt.Outcome {
	case scanapi.OutcomeDetected:
		c.onDetected(attempt)
	case scanapi.OutcomeNotFound:
		// サイレント中の否定結果は利用者に通知しない
		if !silent {
			c.status.Publish(StatusUpdate{Level: LevelNotice, Message: "No barcode detected. Hold steady and try again."})
		}
	}
}

// transportFailure は通信・キャプチャ失敗を処理する
// サイレント中はログのみ残し、次のティックで暗黙に再試行される
func (c *Controller) transportFailure(silent bool, err error) {
	log.Printf("スキャン試行に失敗: %v", err)
	if !silent {
		c.status.Publish(StatusUpdate{Level: LevelError, Message: "Scan failed. Check your connection and try again."})
	}
}

// onDetected は検出成功を処理する
// ポーリングを先に止め、通知音と成功表示の後、遅延して結果ページへ遷移する
func (c *Controller) onDetected(attempt scanapi.Attempt) {
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return
	}
	c.state = StateDetected

	// 遷移遅延の間に次のティックが発火しないよう、タイマーを先に解除する
	c.stopLoopLocked()

	resultURL := c.client.ResultURL(attempt.Barcode)
	c.navTimer = time.AfterFunc(c.navDelay, func() {
		c.navigator.Navigate(resultURL)
		c.endSession()
	})
	c.mu.Unlock()

	c.status.Publish(StatusUpdate{Level: LevelSuccess, Message: fmt.Sprintf("Barcode detected: %s", attempt.Barcode)})
	c.beeper.Beep()

	if c.recorder != nil {
		if err := c.recorder.Record(context.Background(), attempt.Barcode, attempt.IsIndian); err != nil {
			log.Printf("履歴の記録に失敗: %v", err)
		}
	}
}

// endSession は遷移後にセッションを終了する
func (c *Controller) endSession() {
	c.mu.Lock()
	if c.state != StateDetected {
		c.mu.Unlock()
		return
	}
	if c.stream != nil {
		_ = c.stream.Close()
		c.stream = nil
	}
	c.navTimer = nil
	c.state = StateIdle
	c.mu.Unlock()

	c.status.Publish(StatusUpdate{Level: LevelIdle, Message: "Camera stopped."})
}

// startLoopLocked はポーリングループを開始する（ロック済み前提）
func (c *Controller) startLoopLocked(ctx context.Context) {
	c.stopCh = make(chan struct{})
	c.loopRunning = true
	c.wg.Add(1)
	go c.pollLoop(ctx, c.stopCh)
}

// stopLoopLocked はポーリングループに停止を指示する（ロック済み前提）
// ゴルーチンの終了待機は呼び出し側がロック外で行う
func (c *Controller) stopLoopLocked() {
	if c.loopRunning {
		close(c.stopCh)
		c.loopRunning = false
	}
}

// pollLoop は一定間隔でサイレントなスキャン試行を発火する
func (c *Controller) pollLoop(ctx context.Context, stopCh <-chan struct{}) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.CaptureAndScan(ctx, true)
		}
	}
}
