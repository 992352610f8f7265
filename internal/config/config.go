package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server  ServerConfig
	Camera  CameraConfig
	Scan    ScanConfig
	History HistoryConfig
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string // リッスンするホスト
	Port int    // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout  time.Duration // 読み込みタイムアウト
	WriteTimeout time.Duration // 書き込みタイムアウト
}

// CameraConfig はカメラ関連の設定
type CameraConfig struct {
	Device string // デバイスパス (例: /dev/video0)

	// 目標解像度（ベストエフォート、デバイスが対応しない場合は無制約で再試行）
	Width  int
	Height int

	// JPEGエンコード品質 (1-100)
	JPEGQuality int
}

// ScanConfig はスキャンループとAPI連携の設定
type ScanConfig struct {
	// バーコード判定APIのベースURL
	APIBase string

	// ポーリング間隔
	PollInterval time.Duration

	// 検出成功から結果ページ遷移までの遅延
	NavigateDelay time.Duration

	// APIリクエストのタイムアウト
	RequestTimeout time.Duration
}

// HistoryConfig はスキャン履歴の設定
type HistoryConfig struct {
	// SQLiteデータベースファイルのパス。空の場合は履歴を無効化する
	DatabasePath string
}

// Load は設定を読み込む
// .env ファイルがあれば先に読み込み、環境変数でデフォルト値を上書きする
func Load() (*Config, error) {
	// .env はオプション（存在しなくてもエラーにしない）
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvAsIntOrDefault("PORT", 8080),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Camera: CameraConfig{
			Device:      getEnvOrDefault("CAMERA_DEVICE", "/dev/video0"),
			Width:       getEnvAsIntOrDefault("CAMERA_WIDTH", 1280),
			Height:      getEnvAsIntOrDefault("CAMERA_HEIGHT", 720),
			JPEGQuality: getEnvAsIntOrDefault("JPEG_QUALITY", 85),
		},
		Scan: ScanConfig{
			APIBase:        getEnvOrDefault("SCAN_API_BASE", "http://localhost:5000"),
			PollInterval:   getEnvAsDurationOrDefault("POLL_INTERVAL", 1500*time.Millisecond),
			NavigateDelay:  getEnvAsDurationOrDefault("NAVIGATE_DELAY", 900*time.Millisecond),
			RequestTimeout: getEnvAsDurationOrDefault("REQUEST_TIMEOUT", 10*time.Second),
		},
		History: HistoryConfig{
			DatabasePath: getEnvOrDefault("HISTORY_DB", "scan_history.db"),
		},
	}

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	// サーバー設定の検証
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("無効なポート番号: %d", c.Server.Port)
	}

	// カメラ設定の検証
	if c.Camera.Width <= 0 || c.Camera.Width > 4096 {
		return fmt.Errorf("無効な幅: %d", c.Camera.Width)
	}
	if c.Camera.Height <= 0 || c.Camera.Height > 4096 {
		return fmt.Errorf("無効な高さ: %d", c.Camera.Height)
	}
	if c.Camera.JPEGQuality < 1 || c.Camera.JPEGQuality > 100 {
		return fmt.Errorf("無効なJPEG品質: %d", c.Camera.JPEGQuality)
	}

	// スキャン設定の検証
	if c.Scan.APIBase == "" {
		return fmt.Errorf("スキャンAPIのベースURLが未設定")
	}
	if c.Scan.PollInterval <= 0 {
		return fmt.Errorf("無効なポーリング間隔: %v", c.Scan.PollInterval)
	}
	if c.Scan.NavigateDelay <= 0 {
		return fmt.Errorf("無効な遷移遅延: %v", c.Scan.NavigateDelay)
	}

	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvAsDurationOrDefault は環境変数を時間として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
