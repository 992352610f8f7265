package scanner

import (
	"context"
	"sync"

	"github.com/ravikarmata24-ai/Bharatscan/internal/scanapi"
)

// MockStream はテスト用のStream実装
type MockStream struct {
	mu         sync.Mutex
	closed     bool
	closeCount int
	frame      []byte
	captureErr error
}

// NewMockStream は新しいMockStreamを作成する
func NewMockStream(frame []byte) *MockStream {
	return &MockStream{frame: frame}
}

// CaptureJPEG は設定されたフレームを返す
func (m *MockStream) CaptureJPEG(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.captureErr != nil {
		return nil, m.captureErr
	}
	return m.frame, nil
}

// Close はストリームを閉じる。再入可能
func (m *MockStream) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.closeCount++
	return nil
}

// Active はストリームが有効かどうかを返す
func (m *MockStream) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

// CloseCount はCloseが呼ばれた回数を返す
func (m *MockStream) CloseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCount
}

// SetCaptureError はテスト用にキャプチャ失敗を設定する
func (m *MockStream) SetCaptureError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captureErr = err
}

// MockOpener はテスト用のStreamOpener実装
type MockOpener struct {
	mu        sync.Mutex
	stream    *MockStream
	openErr   error
	openCount int
}

// NewMockOpener は新しいMockOpenerを作成する
func NewMockOpener(stream *MockStream) *MockOpener {
	return &MockOpener{stream: stream}
}

// Open はテスト設定に従ってストリームまたはエラーを返す
func (m *MockOpener) Open(_ context.Context) (Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openCount++
	if m.openErr != nil {
		return nil, m.openErr
	}
	return m.stream, nil
}

// SetOpenError はテスト用に取得失敗を設定する
func (m *MockOpener) SetOpenError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openErr = err
}

// OpenCount はOpenが呼ばれた回数を返す
func (m *MockOpener) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openCount
}

// MockSubmitter はテスト用のSubmitter実装
// 設定された結果を先頭から順に返し、尽きた後は最後の結果を返し続ける
type MockSubmitter struct {
	mu       sync.Mutex
	attempts []scanapi.Attempt
	errs     []error
	calls    int
	baseURL  string
}

// NewMockSubmitter は新しいMockSubmitterを作成する
func NewMockSubmitter(baseURL string) *MockSubmitter {
	return &MockSubmitter{baseURL: baseURL}
}

// Queue は次以降の呼び出しで返す結果を追加する
func (m *MockSubmitter) Queue(attempt scanapi.Attempt, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, attempt)
	m.errs = append(m.errs, err)
}

// ScanFrame はキューの先頭から結果を返す
func (m *MockSubmitter) ScanFrame(_ context.Context, _ []byte) (scanapi.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.calls
	m.calls++

	if len(m.attempts) == 0 {
		return scanapi.Attempt{Outcome: scanapi.OutcomeNotFound}, nil
	}
	if idx >= len(m.attempts) {
		idx = len(m.attempts) - 1
	}
	return m.attempts[idx], m.errs[idx]
}

// Calls はScanFrameが呼ばれた回数を返す
func (m *MockSubmitter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// ResultURL はベースURLに結果パスを連結して返す
func (m *MockSubmitter) ResultURL(code string) string {
	return m.baseURL + "/result/" + code
}

// RecordingStatusSink はテスト用に状態通知を記録するStatusSink実装
type RecordingStatusSink struct {
	mu      sync.Mutex
	updates []StatusUpdate
}

// Publish は通知を記録する
func (r *RecordingStatusSink) Publish(update StatusUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, update)
}

// Updates は記録された通知のコピーを返す
func (r *RecordingStatusSink) Updates() []StatusUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	updates := make([]StatusUpdate, len(r.updates))
	copy(updates, r.updates)
	return updates
}

// Last は最後の通知を返す
func (r *RecordingStatusSink) Last() (StatusUpdate, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.updates) == 0 {
		return StatusUpdate{}, false
	}
	return r.updates[len(r.updates)-1], true
}

// CountingBeeper はテスト用に呼び出し回数を数えるBeeper実装
type CountingBeeper struct {
	mu    sync.Mutex
	beeps int
}

// Beep は回数を記録する
func (b *CountingBeeper) Beep() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.beeps++
}

// Beeps は呼び出し回数を返す
func (b *CountingBeeper) Beeps() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.beeps
}

// RecordingNavigator はテスト用に遷移先を記録するNavigator実装
type RecordingNavigator struct {
	mu   sync.Mutex
	urls []string
}

// Navigate は遷移先を記録する
func (n *RecordingNavigator) Navigate(resultURL string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.urls = append(n.urls, resultURL)
}

// URLs は記録された遷移先のコピーを返す
func (n *RecordingNavigator) URLs() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	urls := make([]string, len(n.urls))
	copy(urls, n.urls)
	return urls
}
