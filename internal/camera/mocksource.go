package camera

import (
	"context"
	"sync"
)

// MockFrameSource はテスト用のFrameSource実装
type MockFrameSource struct {
	mu sync.Mutex

	// テスト制御用
	probeErr   error
	captureErr error
	frame      []byte

	probeCount   int
	captureCount int
}

// NewMockFrameSource は新しいMockFrameSourceを作成する
func NewMockFrameSource(frame []byte) *MockFrameSource {
	return &MockFrameSource{frame: frame}
}

// Probe はテスト設定に従って成功または失敗する
func (m *MockFrameSource) Probe(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probeCount++
	return m.probeErr
}

// CaptureJPEG は設定されたフレームを返す
func (m *MockFrameSource) CaptureJPEG(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captureCount++
	if m.captureErr != nil {
		return nil, m.captureErr
	}
	frame := make([]byte, len(m.frame))
	copy(frame, m.frame)
	return frame, nil
}

// SetProbeError はテスト用にProbe失敗を設定する
func (m *MockFrameSource) SetProbeError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probeErr = err
}

// SetCaptureError はテスト用にキャプチャ失敗を設定する
func (m *MockFrameSource) SetCaptureError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captureErr = err
}

// CaptureCount はキャプチャ回数を返す
func (m *MockFrameSource) CaptureCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.captureCount
}
