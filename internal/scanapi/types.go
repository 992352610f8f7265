package scanapi

import (
	"github.com/ravikarmata24-ai/Bharatscan/internal/barcode"
)

// Outcome は1回のスキャン試行の結果分類を表す
type Outcome string

const (
	// OutcomeNotFound はフレームに判読可能なバーコードがなかった（エラーではない）
	OutcomeNotFound Outcome = "not_found"
	// OutcomeDetected はバーコードが検出された
	OutcomeDetected Outcome = "detected"
)

// Attempt は1回のスキャン試行の結果を表す
// 通信・解析失敗はAttemptではなくerrorとして返る
type Attempt struct {
	Outcome  Outcome
	Barcode  string
	IsIndian bool
	Format   string
}

// ScanResult はAPIが返す検出情報
type ScanResult struct {
	Barcode  string `json:"barcode"`
	Format   string `json:"format,omitempty"`
	IsIndian bool   `json:"is_indian"`
	Quality  string `json:"quality,omitempty"`
}

// ProductResult はAPIが返す製品照会結果
type ProductResult struct {
	Found bool `json:"found"`
}

// cameraScanResponse は POST /api/scan/camera のレスポンス
type cameraScanResponse struct {
	Found bool        `json:"found"`
	Scan  *ScanResult `json:"scan,omitempty"`
	Error string      `json:"error,omitempty"`
}

// UploadResult は POST /api/scan/upload の結果
type UploadResult struct {
	Scan    *ScanResult    `json:"scan,omitempty"`
	Product *ProductResult `json:"product,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// ManualResult は POST /api/scan/manual の結果
type ManualResult struct {
	Product     *ProductResult `json:"product,omitempty"`
	BarcodeInfo *barcode.Info  `json:"barcode_info,omitempty"`
	Error       string         `json:"error,omitempty"`
}
