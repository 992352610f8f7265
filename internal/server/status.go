package server

import (
	"sync"
	"time"

	"github.com/ravikarmata24-ai/Bharatscan/internal/scanner"
)

// StatusBoard は最新のスキャナ状態表示を保持するStatusSink実装
// 画面の状態テキストに相当し、常に最後の通知だけを表示する
type StatusBoard struct {
	mu        sync.RWMutex
	latest    scanner.StatusUpdate
	updatedAt time.Time
}

// NewStatusBoard は新しいStatusBoardを作成する
func NewStatusBoard() *StatusBoard {
	return &StatusBoard{
		latest: scanner.StatusUpdate{
			Level:   scanner.LevelIdle,
			Message: "Camera stopped.",
		},
		updatedAt: time.Now(),
	}
}

// Publish は最新の状態を上書きする
func (b *StatusBoard) Publish(update scanner.StatusUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.latest = update
	b.updatedAt = time.Now()
}

// Latest は最新の状態と更新時刻を返す
func (b *StatusBoard) Latest() (scanner.StatusUpdate, time.Time) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.latest, b.updatedAt
}
