// Package main はBharatScanスキャナエージェントコマンドの実装です
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ravikarmata24-ai/Bharatscan/internal/camera"
	"github.com/ravikarmata24-ai/Bharatscan/internal/config"
	"github.com/ravikarmata24-ai/Bharatscan/internal/history"
	"github.com/ravikarmata24-ai/Bharatscan/internal/scanapi"
	"github.com/ravikarmata24-ai/Bharatscan/internal/scanner"
	"github.com/ravikarmata24-ai/Bharatscan/internal/server"
)

func main() {
	// コマンドラインオプション
	var (
		host    = flag.String("host", "", "サーバーのホスト (デフォルト: 0.0.0.0)")
		port    = flag.Int("port", 0, "サーバーのポート (デフォルト: 8080)")
		device  = flag.String("device", "", "カメラデバイス (デフォルト: /dev/video0)")
		apiBase = flag.String("api", "", "判定APIのベースURL (デフォルト: http://localhost:5000)")
		help    = flag.Bool("help", false, "ヘルプを表示")
	)

	flag.Parse()

	// ヘルプ表示
	if *help {
		fmt.Println("BharatScan Agent")
		fmt.Println()
		fmt.Println("使用方法:")
		fmt.Println("  agent [オプション]")
		fmt.Println()
		fmt.Println("オプション:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	// 設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// コマンドラインオプションで設定を上書き
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *device != "" {
		cfg.Camera.Device = *device
	}
	if *apiBase != "" {
		cfg.Scan.APIBase = *apiBase
	}

	ctx := context.Background()

	// 判定APIクライアントを作成
	client := scanapi.New(cfg.Scan.APIBase, cfg.Scan.RequestTimeout)

	// 履歴ストアを開く（パス未設定時は無効）
	var store *history.Store
	if cfg.History.DatabasePath != "" {
		store, err = history.Open(cfg.History.DatabasePath)
		if err != nil {
			log.Fatalf("履歴ストアのオープンに失敗しました: %v", err)
		}
	}

	// スキャナコントローラを作成
	board := server.NewStatusBoard()
	controller := scanner.NewController(
		scanner.DeviceOpener{
			Device: camera.DefaultDevice(ctx, cfg.Camera.Device),
			Settings: camera.Settings{
				Width:       cfg.Camera.Width,
				Height:      cfg.Camera.Height,
				JPEGQuality: cfg.Camera.JPEGQuality,
			},
		},
		client,
		scanner.Config{
			PollInterval:  cfg.Scan.PollInterval,
			NavigateDelay: cfg.Scan.NavigateDelay,
			Status:        board,
			Navigator:     scanner.BrowserNavigator{},
			Recorder:      cameraRecorder(store),
		},
	)

	// サーバーを作成して起動
	srv := server.New(cfg, controller, client, store, board)
	log.Printf("BharatScan エージェントを起動します: %s", cfg.ServerAddress())
	if err := srv.Start(ctx); err != nil {
		log.Fatalf("サーバーの起動に失敗しました: %v", err)
	}
}

// cameraRecorder はカメラスキャンの検出成功を履歴に記録するRecorderを返す
func cameraRecorder(store *history.Store) scanner.Recorder {
	if store == nil {
		return nil
	}
	return scanner.RecorderFunc(func(ctx context.Context, code string, isIndian bool) error {
		return store.Record(ctx, code, history.MethodCamera, isIndian)
	})
}
