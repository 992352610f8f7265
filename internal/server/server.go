package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ravikarmata24-ai/Bharatscan/internal/config"
	"github.com/ravikarmata24-ai/Bharatscan/internal/history"
	"github.com/ravikarmata24-ai/Bharatscan/internal/scanapi"
	"github.com/ravikarmata24-ai/Bharatscan/internal/scanner"

	"github.com/gin-gonic/gin"
)

// Server はHTTPサーバーとスキャナの統合を管理する構造体
type Server struct {
	config     *config.Config
	engine     *gin.Engine
	httpServer *http.Server
	controller *scanner.Controller
	client     *scanapi.Client
	store      *history.Store
	board      *StatusBoard

	// ポーリングループに渡すサーバー生存コンテキスト
	baseCtx context.Context
}

// New は新しいServerインスタンスを作成する
// storeはnil可（履歴無効時）
func New(cfg *config.Config, controller *scanner.Controller, client *scanapi.Client, store *history.Store, board *StatusBoard) *Server {
	engine := gin.Default()
	engine.MaxMultipartMemory = scanapi.MaxUploadBytes

	s := &Server{
		config:     cfg,
		engine:     engine,
		controller: controller,
		client:     client,
		store:      store,
		board:      board,
		baseCtx:    context.Background(),
		httpServer: &http.Server{
			Addr:         cfg.ServerAddress(),
			Handler:      engine,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	s.setupRoutes()
	return s
}

// setupRoutes はHTTPルートを設定する
func (s *Server) setupRoutes() {
	// ヘルスチェックエンドポイント
	s.engine.GET("/health", s.handleHealth)

	api := s.engine.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.GET("/history", s.handleHistory)

		// スキャナ制御
		sc := api.Group("/scanner")
		{
			sc.POST("/start", s.handleScannerStart)
			sc.POST("/stop", s.handleScannerStop)
			sc.POST("/suspend", s.handleScannerSuspend)
			sc.POST("/resume", s.handleScannerResume)
			sc.POST("/scan", s.handleScannerScan)
		}

		// 判定APIの中継
		scan := api.Group("/scan")
		{
			scan.POST("/upload", s.handleScanUpload)
			scan.POST("/manual", s.handleScanManual)
		}
	}
}

// Start はサーバーを起動する
func (s *Server) Start(ctx context.Context) error {
	// ポーリングループの生存期間はサーバーの生存期間に合わせる
	baseCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.baseCtx = baseCtx

	// シャットダウン用のチャンネル
	shutdownCh := make(chan error, 1)

	// サーバーを別ゴルーチンで起動
	go func() {
		log.Printf("HTTPサーバーを起動しています: %s", s.config.ServerAddress())
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			shutdownCh <- fmt.Errorf("サーバーの起動に失敗: %w", err)
		}
	}()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// コンテキストかシグナルを待つ
	select {
	case <-ctx.Done():
		log.Println("コンテキストがキャンセルされました")
	case sig := <-sigCh:
		log.Printf("シグナルを受信しました: %v", sig)
	case err := <-shutdownCh:
		s.teardown()
		return err
	}

	// グレースフルシャットダウン
	return s.Shutdown()
}

// Shutdown はサーバーをグレースフルにシャットダウンする
// スキャナのティアダウン（ポーリング停止とストリーム解放）も合流する
func (s *Server) Shutdown() error {
	log.Println("サーバーをシャットダウンしています...")

	s.teardown()

	// 5秒のタイムアウトを設定
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("サーバーのシャットダウンに失敗: %w", err)
	}

	log.Println("サーバーが正常にシャットダウンされました")
	return nil
}

// teardown はスキャナと履歴ストアを解放する。何度呼んでも安全
func (s *Server) teardown() {
	s.controller.Stop()
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("履歴ストアのクローズに失敗: %v", err)
		}
		s.store = nil
	}
}
