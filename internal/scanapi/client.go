// Package scanapi はBharatScan判定APIとのHTTP連携を担う
//
// # 責務
// - カメラフレームの送信 (POST /api/scan/camera)
// - アップロード画像の送信 (POST /api/scan/upload) と事前検証
// - 手入力バーコードの照会 (POST /api/scan/manual)
// - 結果ページURL (/result/{barcode}) の組み立て
//
// 判定処理そのものはAPI側（zbarベースのデコーダ）に委譲する
package scanapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
)

// MaxUploadBytes はアップロード画像の最大サイズ (16MB)
const MaxUploadBytes = 16 * 1024 * 1024

// allowedImageMIMEs はアップロードを許可する画像形式
var allowedImageMIMEs = []string{
	"image/png",
	"image/jpeg",
	"image/gif",
	"image/bmp",
	"image/webp",
}

// Client はBharatScan判定APIのクライアント
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New は新しいClientを作成する
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ScanFrame はカメラフレームを送信してバーコード判定を依頼する
// found=false は正常な否定結果としてOutcomeNotFoundを返す
// 通信・解析の失敗はerrorとして返る
func (c *Client) ScanFrame(ctx context.Context, frame []byte) (Attempt, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("frame", "frame.jpg")
	if err != nil {
		return Attempt{}, fmt.Errorf("マルチパートの作成に失敗: %w", err)
	}
	if _, err := part.Write(frame); err != nil {
		return Attempt{}, fmt.Errorf("フレームの書き込みに失敗: %w", err)
	}
	if err := writer.Close(); err != nil {
		return Attempt{}, fmt.Errorf("マルチパートのクローズに失敗: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/scan/camera", &body)
	if err != nil {
		return Attempt{}, fmt.Errorf("リクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Attempt{}, fmt.Errorf("フレーム送信に失敗: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Attempt{}, fmt.Errorf("フレーム送信が失敗ステータスを返却: %d", resp.StatusCode)
	}

	var decoded cameraScanResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Attempt{}, fmt.Errorf("レスポンスの解析に失敗: %w", err)
	}

	if !decoded.Found || decoded.Scan == nil {
		return Attempt{Outcome: OutcomeNotFound}, nil
	}

	return Attempt{
		Outcome:  OutcomeDetected,
		Barcode:  decoded.Scan.Barcode,
		IsIndian: decoded.Scan.IsIndian,
		Format:   decoded.Scan.Format,
	}, nil
}

// ValidateUpload はアップロード画像を事前検証する
// サイズ上限とMIMEタイプ（png/jpeg/gif/bmp/webp）をチェックする
func ValidateUpload(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("no file selected")
	}
	if len(data) > MaxUploadBytes {
		return fmt.Errorf("file too large: %s (max %s)",
			humanize.IBytes(uint64(len(data))), humanize.IBytes(uint64(MaxUploadBytes)))
	}

	detected := mimetype.Detect(data)
	for _, allowed := range allowedImageMIMEs {
		if detected.Is(allowed) {
			return nil
		}
	}
	return fmt.Errorf("invalid file type %s. Allowed: png, jpg, jpeg, gif, bmp, webp", detected.String())
}

// Upload はアップロード画像を送信してバーコード判定を依頼する
// 送信前にValidateUploadで検証すること
func (c *Client) Upload(ctx context.Context, filename string, data []byte) (*UploadResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return nil, fmt.Errorf("マルチパートの作成に失敗: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("画像の書き込みに失敗: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("マルチパートのクローズに失敗: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/scan/upload", &body)
	if err != nil {
		return nil, fmt.Errorf("リクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("画像送信に失敗: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var result UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("レスポンスの解析に失敗: %w", err)
	}

	// エラー応答はboundaryを保ったまま呼び出し側に返す
	return &result, nil
}

// Manual は手入力バーコードの照会を依頼する
func (c *Client) Manual(ctx context.Context, code string) (*ManualResult, error) {
	payload, err := json.Marshal(map[string]string{"barcode": code})
	if err != nil {
		return nil, fmt.Errorf("リクエストの作成に失敗: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/scan/manual", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("リクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("バーコード照会に失敗: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var result ManualResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("レスポンスの解析に失敗: %w", err)
	}

	return &result, nil
}

// ReadAll はアップロードファイルをサイズ上限+1バイトまで読み込む
// 上限超過の判定をメモリを溢れさせずに行うためのヘルパー
func ReadAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("ファイルの読み込みに失敗: %w", err)
	}
	return data, nil
}

// ResultURL はバーコードに対応する結果ページの完全URLを返す
func (c *Client) ResultURL(code string) string {
	return c.baseURL + "/result/" + url.PathEscape(code)
}
