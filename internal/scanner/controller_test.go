package scanner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ravikarmata24-ai/Bharatscan/internal/camera"
	"github.com/ravikarmata24-ai/Bharatscan/internal/scanapi"

	"go.uber.org/goleak"
)

// TestMain はポーリングループのゴルーチンリークを検出する
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// waitFor は条件が満たされるまでポーリングする
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

// newTestController はテスト用の部品一式を組み立てる
func newTestController(interval, navDelay time.Duration) (*Controller, *MockOpener, *MockStream, *MockSubmitter, *RecordingStatusSink, *CountingBeeper, *RecordingNavigator) {
	stream := NewMockStream([]byte{0xFF, 0xD8, 0xFF, 0xD9})
	opener := NewMockOpener(stream)
	submitter := NewMockSubmitter("http://scanner.test")
	sink := &RecordingStatusSink{}
	beeper := &CountingBeeper{}
	nav := &RecordingNavigator{}

	ctrl := NewController(opener, submitter, Config{
		PollInterval:  interval,
		NavigateDelay: navDelay,
		Status:        sink,
		Beeper:        beeper,
		Navigator:     nav,
	})
	return ctrl, opener, stream, submitter, sink, beeper, nav
}

// TestControllerStartSuccess は開始成功時の状態をテストする
func TestControllerStartSuccess(t *testing.T) {
	ctx := context.Background()
	ctrl, _, _, _, sink, _, _ := newTestController(time.Hour, time.Hour)
	defer ctrl.Stop()

	ctrl.Start(ctx)

	if ctrl.State() != StateActive {
		t.Errorf("状態が異なります: %s", ctrl.State())
	}
	if !ctrl.Polling() {
		t.Error("ポーリングが開始されていません")
	}
	if !ctrl.HasStream() {
		t.Error("ストリームが保持されていません")
	}

	last, ok := sink.Last()
	if !ok || last.Level != LevelActive {
		t.Errorf("最新の状態表示が異なります: %+v", last)
	}
}

// TestControllerStartAcquisitionFailure は取得失敗の扱いをテストする
// 失敗後はストリームもポーリングループも残らない
func TestControllerStartAcquisitionFailure(t *testing.T) {
	ctx := context.Background()

	kinds := []camera.AcquireErrorKind{
		camera.KindPermissionDenied,
		camera.KindDeviceNotFound,
		camera.KindDeviceBusy,
		camera.KindConstraintsUnsatisfiable,
		camera.KindUnsupportedEnvironment,
	}

	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			ctrl, opener, _, _, sink, _, _ := newTestController(time.Hour, time.Hour)
			acquireErr := &camera.AcquireError{Kind: kind, Device: "/dev/video0"}
			opener.SetOpenError(acquireErr)

			ctrl.Start(ctx)

			if ctrl.State() != StateIdle {
				t.Errorf("失敗後はIdleに戻るべきです: %s", ctrl.State())
			}
			if ctrl.HasStream() {
				t.Error("失敗後にストリームが残っています")
			}
			if ctrl.Polling() {
				t.Error("失敗後にポーリングループが残っています")
			}

			// 分類済みメッセージがそのまま表示される
			last, ok := sink.Last()
			if !ok || last.Level != LevelError {
				t.Fatalf("エラー表示がありません: %+v", last)
			}
			if last.Message != acquireErr.Message() {
				t.Errorf("メッセージが異なります: got %q, want %q", last.Message, acquireErr.Message())
			}
		})
	}
}

// TestControllerStartUnknownFailure は未分類の取得失敗をテストする
func TestControllerStartUnknownFailure(t *testing.T) {
	ctx := context.Background()
	ctrl, opener, _, _, sink, _, _ := newTestController(time.Hour, time.Hour)
	opener.SetOpenError(errors.New("platform exploded"))

	ctrl.Start(ctx)

	if ctrl.State() != StateIdle {
		t.Errorf("失敗後はIdleに戻るべきです: %s", ctrl.State())
	}
	last, ok := sink.Last()
	if !ok || last.Level != LevelError {
		t.Fatalf("エラー表示がありません: %+v", last)
	}
	// 未分類の失敗は元のエラー文字列を含めて表示する
	if !strings.Contains(last.Message, "platform exploded") {
		t.Errorf("元のエラー文字列が含まれていません: %q", last.Message)
	}
}

// TestControllerStopIdempotent はStopの再入可能性をテストする
func TestControllerStopIdempotent(t *testing.T) {
	ctx := context.Background()
	ctrl, _, stream, _, sink, _, _ := newTestController(time.Hour, time.Hour)

	ctrl.Start(ctx)
	ctrl.Stop()

	if ctrl.State() != StateIdle {
		t.Errorf("状態が異なります: %s", ctrl.State())
	}
	if stream.Active() {
		t.Error("ストリームが解放されていません")
	}

	// 2回目のStopも安全で、状態は変わらず、表示も更新されない
	updates := len(sink.Updates())
	ctrl.Stop()

	if ctrl.State() != StateIdle {
		t.Errorf("2回目のStop後の状態が異なります: %s", ctrl.State())
	}
	if ctrl.HasStream() || ctrl.Polling() {
		t.Error("2回目のStop後にリソースが残っています")
	}
	if len(sink.Updates()) != updates {
		t.Errorf("2回目のStopで表示が更新されました: %+v", sink.Updates()[updates:])
	}
}

// TestControllerStopKeepsErrorStatus は取得失敗後のStopの表示をテストする
// 解放するものがないStopは失敗の案内を上書きしない
func TestControllerStopKeepsErrorStatus(t *testing.T) {
	ctx := context.Background()
	ctrl, opener, _, _, sink, _, _ := newTestController(time.Hour, time.Hour)
	acquireErr := &camera.AcquireError{Kind: camera.KindPermissionDenied, Device: "/dev/video0"}
	opener.SetOpenError(acquireErr)

	ctrl.Start(ctx)
	ctrl.Stop() // シャットダウン時のティアダウンに相当

	last, ok := sink.Last()
	if !ok || last.Level != LevelError {
		t.Fatalf("失敗の案内が上書きされました: %+v", last)
	}
	if last.Message != acquireErr.Message() {
		t.Errorf("メッセージが異なります: got %q, want %q", last.Message, acquireErr.Message())
	}
}

// TestControllerStopWithoutStart は未開始状態のStopをテストする
func TestControllerStopWithoutStart(t *testing.T) {
	ctrl, _, _, _, _, _, _ := newTestController(time.Hour, time.Hour)

	ctrl.Stop() // パニックや異常なしで完了すること

	if ctrl.State() != StateIdle {
		t.Errorf("状態が異なります: %s", ctrl.State())
	}
}

// TestControllerCaptureWithoutStream はストリームなしのスキャン試行をテストする
// 送信は一切発行されない
func TestControllerCaptureWithoutStream(t *testing.T) {
	ctx := context.Background()

	t.Run("非サイレントは通知する", func(t *testing.T) {
		ctrl, _, _, submitter, sink, _, _ := newTestController(time.Hour, time.Hour)

		ctrl.CaptureAndScan(ctx, false)

		if submitter.Calls() != 0 {
			t.Errorf("送信が発行されました: %d", submitter.Calls())
		}
		last, ok := sink.Last()
		if !ok || last.Level != LevelNotice {
			t.Errorf("通知がありません: %+v", last)
		}
	})

	t.Run("サイレントは何もしない", func(t *testing.T) {
		ctrl, _, _, submitter, sink, _, _ := newTestController(time.Hour, time.Hour)

		ctrl.CaptureAndScan(ctx, true)

		if submitter.Calls() != 0 {
			t.Errorf("送信が発行されました: %d", submitter.Calls())
		}
		if len(sink.Updates()) != 0 {
			t.Errorf("サイレントで通知が発生しました: %+v", sink.Updates())
		}
	})
}

// TestControllerSilentMissKeepsPolling はサイレントな否定結果の扱いをテストする
// 3回連続で見つからなくてもActiveのまま、状態表示はactiveのまま変わらない
func TestControllerSilentMissKeepsPolling(t *testing.T) {
	ctx := context.Background()
	ctrl, _, _, submitter, sink, _, _ := newTestController(10*time.Millisecond, time.Hour)
	defer ctrl.Stop()

	// キューが空のMockSubmitterは常にNotFoundを返す
	ctrl.Start(ctx)

	waitFor(t, 2*time.Second, func() bool { return submitter.Calls() >= 3 },
		"ティックが3回発火しませんでした")

	if ctrl.State() != StateActive {
		t.Errorf("状態が異なります: %s", ctrl.State())
	}
	if !ctrl.Polling() {
		t.Error("ポーリングが停止しています")
	}

	// サイレントな否定結果は状態表示を変えない
	last, ok := sink.Last()
	if !ok || last.Level != LevelActive {
		t.Errorf("状態表示が変化しました: %+v", last)
	}
}

// TestControllerDetectedFlow は検出成功の一連の流れをテストする
func TestControllerDetectedFlow(t *testing.T) {
	ctx := context.Background()
	ctrl, _, stream, submitter, sink, beeper, nav := newTestController(10*time.Millisecond, 40*time.Millisecond)
	defer ctrl.Stop()

	var recordMu sync.Mutex
	var recorded []string
	ctrl.recorder = RecorderFunc(func(_ context.Context, code string, isIndian bool) error {
		recordMu.Lock()
		defer recordMu.Unlock()
		if !isIndian {
			t.Error("is_indianが引き継がれていません")
		}
		recorded = append(recorded, code)
		return nil
	})

	submitter.Queue(scanapi.Attempt{Outcome: scanapi.OutcomeNotFound}, nil)
	submitter.Queue(scanapi.Attempt{
		Outcome:  scanapi.OutcomeDetected,
		Barcode:  "8901030895551",
		IsIndian: true,
	}, nil)

	ctrl.Start(ctx)

	// 検出後、遷移遅延を挟んで結果ページへ遷移する
	waitFor(t, 2*time.Second, func() bool { return len(nav.URLs()) == 1 },
		"結果ページへの遷移が発生しませんでした")

	if got := nav.URLs()[0]; got != "http://scanner.test/result/8901030895551" {
		t.Errorf("遷移先が異なります: %s", got)
	}
	if beeper.Beeps() != 1 {
		t.Errorf("通知音は1回だけ鳴るべきです: %d", beeper.Beeps())
	}

	// 成功表示が出ていること
	var sawSuccess bool
	for _, u := range sink.Updates() {
		if u.Level == LevelSuccess && strings.Contains(u.Message, "8901030895551") {
			sawSuccess = true
		}
	}
	if !sawSuccess {
		t.Errorf("成功表示がありません: %+v", sink.Updates())
	}

	// 遷移後にセッションが終了する
	waitFor(t, 2*time.Second, func() bool { return ctrl.State() == StateIdle },
		"セッションが終了しませんでした")

	if stream.Active() {
		t.Error("遷移後にストリームが解放されていません")
	}

	// 検出後はティックが発火しない（遷移遅延がポーリング間隔を超えていても）
	calls := submitter.Calls()
	time.Sleep(60 * time.Millisecond)
	if submitter.Calls() != calls {
		t.Errorf("検出後に送信が続いています: %d -> %d", calls, submitter.Calls())
	}

	recordMu.Lock()
	defer recordMu.Unlock()
	if len(recorded) != 1 || recorded[0] != "8901030895551" {
		t.Errorf("履歴記録が異なります: %+v", recorded)
	}
}

// TestControllerSuspendResume は一時停止と再開をテストする
// 再開時にカメラを再取得しないこと
func TestControllerSuspendResume(t *testing.T) {
	ctx := context.Background()
	ctrl, opener, _, submitter, _, _, _ := newTestController(10*time.Millisecond, time.Hour)
	defer ctrl.Stop()

	ctrl.Start(ctx)
	waitFor(t, 2*time.Second, func() bool { return submitter.Calls() >= 1 },
		"ティックが発火しませんでした")

	// 一時停止：ポーリングだけ止まり、ストリームは開いたまま
	ctrl.Suspend()

	if ctrl.Polling() {
		t.Error("一時停止後もポーリングが動いています")
	}
	if !ctrl.HasStream() {
		t.Error("一時停止でストリームが解放されました")
	}
	if ctrl.State() != StateActive {
		t.Errorf("一時停止中の状態が異なります: %s", ctrl.State())
	}

	calls := submitter.Calls()
	time.Sleep(50 * time.Millisecond)
	if submitter.Calls() != calls {
		t.Errorf("一時停止中に送信が発生しました: %d -> %d", calls, submitter.Calls())
	}

	// 再開：権限の再取得なしでポーリングが戻る
	ctrl.Resume(ctx)

	if !ctrl.Polling() {
		t.Error("再開後にポーリングが動いていません")
	}
	waitFor(t, 2*time.Second, func() bool { return submitter.Calls() > calls },
		"再開後にティックが発火しませんでした")

	if opener.OpenCount() != 1 {
		t.Errorf("カメラが再取得されました: %d", opener.OpenCount())
	}
}

// TestControllerResumeWithoutStream はストリームなしの再開をテストする
func TestControllerResumeWithoutStream(t *testing.T) {
	ctx := context.Background()
	ctrl, _, _, _, _, _, _ := newTestController(time.Hour, time.Hour)

	ctrl.Resume(ctx) // ストリームがないので何も起きない

	if ctrl.Polling() {
		t.Error("ストリームなしでポーリングが開始されました")
	}
	if ctrl.State() != StateIdle {
		t.Errorf("状態が異なります: %s", ctrl.State())
	}
}

// TestControllerTransportErrorSilent はサイレント中の通信失敗の扱いをテストする
// 失敗は飲み込まれ、ポーリングは継続する
func TestControllerTransportErrorSilent(t *testing.T) {
	ctx := context.Background()
	ctrl, _, _, submitter, sink, _, _ := newTestController(10*time.Millisecond, time.Hour)
	defer ctrl.Stop()

	submitter.Queue(scanapi.Attempt{}, errors.New("connection refused"))

	ctrl.Start(ctx)
	waitFor(t, 2*time.Second, func() bool { return submitter.Calls() >= 3 },
		"ティックが3回発火しませんでした")

	if ctrl.State() != StateActive {
		t.Errorf("通信失敗で状態が変化しました: %s", ctrl.State())
	}
	if !ctrl.Polling() {
		t.Error("通信失敗でポーリングが停止しました")
	}

	for _, u := range sink.Updates() {
		if u.Level == LevelError {
			t.Errorf("サイレント中の失敗が表示されました: %+v", u)
		}
	}
}

// TestControllerTransportErrorExplicit は明示的な試行での通信失敗をテストする
func TestControllerTransportErrorExplicit(t *testing.T) {
	ctx := context.Background()
	ctrl, _, _, submitter, sink, _, _ := newTestController(time.Hour, time.Hour)
	defer ctrl.Stop()

	submitter.Queue(scanapi.Attempt{}, errors.New("connection refused"))

	ctrl.Start(ctx)
	ctrl.CaptureAndScan(ctx, false)

	last, ok := sink.Last()
	if !ok || last.Level != LevelError {
		t.Errorf("明示的な試行の失敗が表示されていません: %+v", last)
	}
}

// slowSubmitter は応答に時間がかかるSubmitter実装
// 同時送信数を記録し、単一飛行保証の検証に使う
type slowSubmitter struct {
	mu        sync.Mutex
	delay     time.Duration
	active    int
	maxActive int
	calls     int
}

func (s *slowSubmitter) ScanFrame(_ context.Context, _ []byte) (scanapi.Attempt, error) {
	s.mu.Lock()
	s.active++
	if s.active > s.maxActive {
		s.maxActive = s.active
	}
	s.calls++
	s.mu.Unlock()

	time.Sleep(s.delay)

	s.mu.Lock()
	s.active--
	s.mu.Unlock()

	return scanapi.Attempt{Outcome: scanapi.OutcomeNotFound}, nil
}

func (s *slowSubmitter) ResultURL(code string) string {
	return "/result/" + code
}

func (s *slowSubmitter) stats() (maxActive, calls int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxActive, s.calls
}

// TestControllerSingleFlight は単一飛行保証をテストする
// ポーリング間隔より応答が遅くても、送信は同時に1つしか発行されない
func TestControllerSingleFlight(t *testing.T) {
	ctx := context.Background()

	stream := NewMockStream([]byte{0xFF, 0xD8})
	opener := NewMockOpener(stream)
	submitter := &slowSubmitter{delay: 30 * time.Millisecond}
	sink := &RecordingStatusSink{}

	ctrl := NewController(opener, submitter, Config{
		PollInterval:  5 * time.Millisecond,
		NavigateDelay: time.Hour,
		Status:        sink,
		Beeper:        NullBeeper{},
		Navigator:     LogNavigator{},
	})
	defer ctrl.Stop()

	ctrl.Start(ctx)

	// ポーリングと並行して明示的な試行を重ねて、重複送信を誘発する
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctrl.CaptureAndScan(ctx, false)
		}()
		time.Sleep(10 * time.Millisecond)
	}
	wg.Wait()

	maxActive, calls := submitter.stats()
	if maxActive != 1 {
		t.Errorf("送信が重複しました: 最大同時数 %d", maxActive)
	}
	if calls < 2 {
		t.Errorf("送信回数が少なすぎます: %d", calls)
	}
}
