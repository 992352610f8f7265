package camera

import (
	"context"
	"fmt"
	"sync"
)

// Settings はストリーム取得時の設定を表す
type Settings struct {
	Width       int // 目標画像幅（ベストエフォート）
	Height      int // 目標画像高さ（ベストエフォート）
	JPEGQuality int // JPEGエンコード品質 (1-100)
}

// Stream は取得済みのカメラキャプチャセッションを表す
// 取得元が排他的に所有し、Closeで解放する。Closeは再入可能
type Stream struct {
	device string
	source FrameSource

	mu     sync.RWMutex
	active bool
}

// Open はカメラストリームを取得する
// 失敗は必ず*AcquireErrorとして分類されて返る
func Open(ctx context.Context, device string, settings Settings) (*Stream, error) {
	source := NewFFmpegGrabber(device, settings.Width, settings.Height, settings.JPEGQuality)
	return OpenWithSource(ctx, device, source)
}

// OpenWithSource は任意のFrameSourceからストリームを取得する
func OpenWithSource(ctx context.Context, device string, source FrameSource) (*Stream, error) {
	if err := source.Probe(ctx); err != nil {
		return nil, AsAcquireError(err)
	}

	return &Stream{
		device: device,
		source: source,
		active: true,
	}, nil
}

// Device はデバイスパスを返す
func (s *Stream) Device() string {
	return s.device
}

// Active はストリームが有効かどうかを返す
func (s *Stream) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// CaptureJPEG は現在のフレームをJPEGとして取得する
func (s *Stream) CaptureJPEG(ctx context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.active {
		return nil, fmt.Errorf("ストリームは既に解放されています: %s", s.device)
	}

	return s.source.CaptureJPEG(ctx)
}

// Close はストリームを解放する。何度呼んでも安全
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return nil // 既に解放済み
	}

	s.active = false
	return nil
}
