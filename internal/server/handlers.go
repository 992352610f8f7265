package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ravikarmata24-ai/Bharatscan/internal/barcode"
	"github.com/ravikarmata24-ai/Bharatscan/internal/history"
	"github.com/ravikarmata24-ai/Bharatscan/internal/scanapi"

	"github.com/gin-gonic/gin"
)

// maxHistoryLimit は履歴取得1回あたりの最大件数
const maxHistoryLimit = 100

// ErrorResponse はAPIのエラー応答
type ErrorResponse struct {
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthResponse はヘルスチェックの応答
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ScannerStatus はスキャナの現在状態
type ScannerStatus struct {
	State     string `json:"state"`
	Polling   bool   `json:"polling"`
	HasStream bool   `json:"has_stream"`
}

// StatusResponse はシステム状態の応答
type StatusResponse struct {
	Status    string        `json:"status"`
	Scanner   ScannerStatus `json:"scanner"`
	Display   DisplayStatus `json:"display"`
	Server    ServerInfo    `json:"server"`
	Timestamp time.Time     `json:"timestamp"`
}

// DisplayStatus は利用者向けの最新状態表示
type DisplayStatus struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ServerInfo はサーバー情報
type ServerInfo struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// manualScanRequest は手入力照会のリクエスト
type manualScanRequest struct {
	Barcode string `json:"barcode"`
}

// handleHealth はヘルスチェックエンドポイントの実装
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	})
}

// handleStatus はシステム状態取得エンドポイントの実装
func (s *Server) handleStatus(c *gin.Context) {
	latest, updatedAt := s.board.Latest()

	c.JSON(http.StatusOK, StatusResponse{
		Status: "running",
		Scanner: ScannerStatus{
			State:     string(s.controller.State()),
			Polling:   s.controller.Polling(),
			HasStream: s.controller.HasStream(),
		},
		Display: DisplayStatus{
			Level:     string(latest.Level),
			Message:   latest.Message,
			UpdatedAt: updatedAt,
		},
		Server: ServerInfo{
			Host: s.config.Server.Host,
			Port: s.config.Server.Port,
		},
		Timestamp: time.Now(),
	})
}

// handleScannerStart はスキャナ開始エンドポイントの実装
// カメラ取得の成否はステータス表示で伝える（このAPI自体は失敗しない）
func (s *Server) handleScannerStart(c *gin.Context) {
	// リクエストコンテキストは応答と同時に破棄されるため、
	// ポーリングループにはサーバーの生存コンテキストを渡す
	s.controller.Start(s.baseCtx)
	s.respondScannerState(c)
}

// handleScannerStop はスキャナ停止エンドポイントの実装
func (s *Server) handleScannerStop(c *gin.Context) {
	s.controller.Stop()
	s.respondScannerState(c)
}

// handleScannerSuspend はポーリング一時停止エンドポイントの実装
func (s *Server) handleScannerSuspend(c *gin.Context) {
	s.controller.Suspend()
	s.respondScannerState(c)
}

// handleScannerResume はポーリング再開エンドポイントの実装
func (s *Server) handleScannerResume(c *gin.Context) {
	s.controller.Resume(s.baseCtx)
	s.respondScannerState(c)
}

// handleScannerScan は明示的な（非サイレント）スキャン試行の実装
func (s *Server) handleScannerScan(c *gin.Context) {
	s.controller.CaptureAndScan(s.baseCtx, false)
	s.respondScannerState(c)
}

// respondScannerState は現在のスキャナ状態と表示を返す
func (s *Server) respondScannerState(c *gin.Context) {
	latest, updatedAt := s.board.Latest()

	c.JSON(http.StatusOK, gin.H{
		"scanner": ScannerStatus{
			State:     string(s.controller.State()),
			Polling:   s.controller.Polling(),
			HasStream: s.controller.HasStream(),
		},
		"display": DisplayStatus{
			Level:     string(latest.Level),
			Message:   latest.Message,
			UpdatedAt: updatedAt,
		},
	})
}

// handleScanUpload は画像アップロードによる判定の実装
// サイズとMIMEタイプを検証してから判定APIへ中継する
func (s *Server) handleScanUpload(c *gin.Context) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     "No image file provided",
			Timestamp: time.Now(),
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     "Could not read uploaded file",
			Timestamp: time.Now(),
		})
		return
	}
	defer func() { _ = file.Close() }()

	data, err := scanapi.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     "Could not read uploaded file",
			Timestamp: time.Now(),
		})
		return
	}

	if err := scanapi.ValidateUpload(data); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     err.Error(),
			Timestamp: time.Now(),
		})
		return
	}

	result, err := s.client.Upload(c.Request.Context(), fileHeader.Filename, data)
	if err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:     "Scan service is unavailable. Please try again.",
			Timestamp: time.Now(),
		})
		return
	}

	if result.Error != "" || result.Scan == nil {
		message := result.Error
		if message == "" {
			message = "No barcode detected in the image. Please try again with a clearer image."
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     message,
			Timestamp: time.Now(),
		})
		return
	}

	s.recordHistory(c, result.Scan.Barcode, history.MethodUpload, result.Scan.IsIndian)
	c.JSON(http.StatusOK, result)
}

// handleScanManual は手入力バーコード照会の実装
// フォーマット検証をローカルで行ってから判定APIへ中継する
func (s *Server) handleScanManual(c *gin.Context) {
	var req manualScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     "Barcode number is required",
			Timestamp: time.Now(),
		})
		return
	}

	code := strings.TrimSpace(req.Barcode)
	if code == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     "Barcode number is required",
			Timestamp: time.Now(),
		})
		return
	}

	if ok, message := barcode.Validate(code); !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     message,
			Timestamp: time.Now(),
		})
		return
	}

	result, err := s.client.Manual(c.Request.Context(), code)
	if err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:     "Scan service is unavailable. Please try again.",
			Timestamp: time.Now(),
		})
		return
	}

	// API側が情報を返さない場合はローカルのプレフィックス表で補完する
	if result.BarcodeInfo == nil {
		info := barcode.GetInfo(code)
		result.BarcodeInfo = &info
	}

	s.recordHistory(c, code, history.MethodManual, result.BarcodeInfo.IsIndian)
	c.JSON(http.StatusOK, result)
}

// handleHistory はスキャン履歴取得エンドポイントの実装
func (s *Server) handleHistory(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:     "Scan history is disabled",
			Timestamp: time.Now(),
		})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	// 1回の取得は最大100件
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	entries, err := s.store.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:     "Could not load scan history",
			Timestamp: time.Now(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"history": entries, "count": len(entries)})
}

// recordHistory はスキャン成功を履歴に記録する（失敗はログのみ）
func (s *Server) recordHistory(c *gin.Context, code string, method history.Method, isIndian bool) {
	if s.store == nil {
		return
	}
	if err := s.store.Record(c.Request.Context(), code, method, isIndian); err != nil {
		// 履歴はベストエフォート。本体の応答は妨げない
		_ = c.Error(err)
	}
}
