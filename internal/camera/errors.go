package camera

import (
	"errors"
	"fmt"
)

// AcquireErrorKind はカメラ取得失敗の分類を表す
type AcquireErrorKind string

const (
	// KindPermissionDenied はデバイスへのアクセス権限がない
	KindPermissionDenied AcquireErrorKind = "permission_denied"
	// KindDeviceNotFound はデバイスが存在しない
	KindDeviceNotFound AcquireErrorKind = "device_not_found"
	// KindDeviceBusy はデバイスが他のプロセスに使用されている
	KindDeviceBusy AcquireErrorKind = "device_busy"
	// KindConstraintsUnsatisfiable は要求した解像度などの制約を満たせない
	KindConstraintsUnsatisfiable AcquireErrorKind = "constraints_unsatisfiable"
	// KindUnsupportedEnvironment は実行環境がキャプチャに対応していない
	KindUnsupportedEnvironment AcquireErrorKind = "unsupported_environment"
	// KindUnknown は分類できない取得失敗
	KindUnknown AcquireErrorKind = "unknown"
)

// AcquireError はカメラ取得失敗を分類付きで表す
type AcquireError struct {
	Kind   AcquireErrorKind
	Device string
	Err    error
}

// Error はエラー文字列を返す
func (e *AcquireError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("カメラ %s の取得に失敗 (%s): %v", e.Device, e.Kind, e.Err)
	}
	return fmt.Sprintf("カメラ %s の取得に失敗 (%s)", e.Device, e.Kind)
}

// Unwrap は元のエラーを返す
func (e *AcquireError) Unwrap() error {
	return e.Err
}

// Message は利用者向けの案内メッセージを返す
// 取得失敗は自動では再試行されないため、代替の入力手段を案内する
func (e *AcquireError) Message() string {
	switch e.Kind {
	case KindPermissionDenied:
		return "Camera access denied. Please allow camera permission, or use image upload or manual entry instead."
	case KindDeviceNotFound:
		return "No camera device found. Please connect a camera, or use image upload or manual entry instead."
	case KindDeviceBusy:
		return "Camera is in use by another application. Please close it, or use image upload or manual entry instead."
	case KindConstraintsUnsatisfiable:
		return "Camera does not support the requested settings. Please use image upload or manual entry instead."
	case KindUnsupportedEnvironment:
		return "Camera capture is not supported in this environment. Please use image upload or manual entry instead."
	default:
		if e.Err != nil {
			return fmt.Sprintf("Could not start camera: %v. Please use image upload or manual entry instead.", e.Err)
		}
		return "Could not start camera. Please use image upload or manual entry instead."
	}
}

// AsAcquireError はエラーをAcquireErrorとして取り出す
// 分類できないエラーはKindUnknownとして包んで返す
func AsAcquireError(err error) *AcquireError {
	var ae *AcquireError
	if errors.As(err, &ae) {
		return ae
	}
	return &AcquireError{Kind: KindUnknown, Err: err}
}
