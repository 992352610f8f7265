// Package history はスキャン履歴のローカル保存を担う
//
// # 責務
// - 成功したスキャン（カメラ・アップロード・手入力）の記録
// - 直近の履歴の取得
//
// # 仕様
// - SQLite (modernc.org/sqlite) に保存。プロセス再起動をまたいで保持される
// - スキーマ作成は何度実行しても安全 (IF NOT EXISTS)
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Method はスキャンの入力手段を表す
type Method string

const (
	MethodCamera Method = "camera" // カメラのポーリングスキャン
	MethodUpload Method = "upload" // 画像アップロード
	MethodManual Method = "manual" // 手入力
)

// Entry は1件のスキャン履歴を表す
type Entry struct {
	ID        string    `json:"id"`
	Barcode   string    `json:"barcode"`
	Method    Method    `json:"scan_method"`
	IsIndian  bool      `json:"is_indian"`
	ScannedAt time.Time `json:"scanned_at"`
}

// Store はスキャン履歴のSQLiteストア
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS scan_history (
    id TEXT PRIMARY KEY,
    barcode TEXT NOT NULL,
    scan_method TEXT NOT NULL CHECK (scan_method IN ('camera', 'upload', 'manual')),
    is_indian INTEGER NOT NULL DEFAULT 0,
    scanned_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scan_history_scanned_at ON scan_history(scanned_at);
CREATE INDEX IF NOT EXISTS idx_scan_history_barcode ON scan_history(barcode);
`

// Open は履歴ストアを開き、スキーマを作成する
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("履歴データベースのオープンに失敗: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("履歴スキーマの作成に失敗: %w", err)
	}

	return &Store{db: db}, nil
}

// Record はスキャン成功を履歴に記録する
func (s *Store) Record(ctx context.Context, code string, method Method, isIndian bool) error {
	indian := 0
	if isIndian {
		indian = 1
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scan_history (id, barcode, scan_method, is_indian, scanned_at)
		 VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), code, string(method), indian, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("履歴の記録に失敗: %w", err)
	}
	return nil
}

// Recent は直近のスキャン履歴を新しい順に取得する
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, barcode, scan_method, is_indian, scanned_at
		 FROM scan_history
		 ORDER BY scanned_at DESC, id
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("履歴の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		var method string
		var indian int
		if err := rows.Scan(&e.ID, &e.Barcode, &method, &indian, &e.ScannedAt); err != nil {
			return nil, fmt.Errorf("履歴行の読み取りに失敗: %w", err)
		}
		e.Method = Method(method)
		e.IsIndian = indian != 0
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("履歴の走査に失敗: %w", err)
	}

	return entries, nil
}

// Count は履歴件数を返す
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scan_history`).Scan(&n); err != nil {
		return 0, fmt.Errorf("履歴件数の取得に失敗: %w", err)
	}
	return n, nil
}

// Close はストアを閉じる
func (s *Store) Close() error {
	return s.db.Close()
}
