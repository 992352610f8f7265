package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// FrameSource は1フレームのJPEGキャプチャ機能を抽象化する
type FrameSource interface {
	// Probe はデバイスから実際にキャプチャできるかテストする
	Probe(ctx context.Context) error

	// CaptureJPEG は1フレームをキャプチャしてJPEGバイト配列として返す
	CaptureJPEG(ctx context.Context) ([]byte, error)
}

// FFmpegGrabber はffmpegコマンドを使ってV4L2デバイスから画像を取得する
type FFmpegGrabber struct {
	devicePath string
	width      int
	height     int
	quality    int

	// 制約付きキャプチャに失敗した後は無制約モードに切り替える
	unconstrained bool
}

// NewFFmpegGrabber は新しいFFmpegGrabberを作成する
// qualityはJPEG品質(1-100)で、ffmpegのqスケール(2-31、小さいほど高品質)に変換される
func NewFFmpegGrabber(devicePath string, width, height, quality int) *FFmpegGrabber {
	return &FFmpegGrabber{
		devicePath: devicePath,
		width:      width,
		height:     height,
		quality:    quality,
	}
}

// Probe はデバイスから実際にキャプチャできるかテストする
// 指定解像度で失敗した場合は無制約で再試行する（ベストエフォート解像度）
func (g *FFmpegGrabber) Probe(ctx context.Context) error {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return &AcquireError{Kind: KindUnsupportedEnvironment, Device: g.devicePath, Err: err}
	}

	if err := g.checkDeviceFile(); err != nil {
		return err
	}

	_, err := g.capture(ctx, false)
	if err == nil {
		return nil
	}

	// 解像度制約が原因の可能性があるため、無制約で再試行
	if _, retryErr := g.capture(ctx, true); retryErr == nil {
		g.unconstrained = true
		return nil
	}

	return g.classifyCaptureError(err)
}

// CaptureJPEG は1フレームをキャプチャしてJPEGバイト配列として返す
func (g *FFmpegGrabber) CaptureJPEG(ctx context.Context) ([]byte, error) {
	return g.capture(ctx, g.unconstrained)
}

// capture はffmpegで1フレームをキャプチャする
func (g *FFmpegGrabber) capture(ctx context.Context, unconstrained bool) ([]byte, error) {
	args := []string{"-f", "v4l2"}
	if !unconstrained {
		args = append(args, "-video_size", fmt.Sprintf("%dx%d", g.width, g.height))
	}
	args = append(args,
		"-i", g.devicePath,
		"-vframes", "1",
		"-f", "image2",
		"-c:v", "mjpeg",
		"-q:v", fmt.Sprintf("%d", g.qScale()),
		"-",
	)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("フレームキャプチャに失敗: %w (stderr: %s)", err, stderr.String())
	}

	if stdout.Len() == 0 {
		return nil, fmt.Errorf("フレームキャプチャに失敗: 出力が空 (stderr: %s)", stderr.String())
	}

	return stdout.Bytes(), nil
}

// qScale はJPEG品質(1-100)をffmpegのqスケール(2-31)に変換する
func (g *FFmpegGrabber) qScale() int {
	q := g.quality
	if q < 1 {
		q = 1
	}
	if q > 100 {
		q = 100
	}
	// 100 -> 2, 1 -> 31
	scale := 31 - (q-1)*29/99
	if scale < 2 {
		scale = 2
	}
	return scale
}

// checkDeviceFile はデバイスファイルの存在とアクセス権限を確認する
func (g *FFmpegGrabber) checkDeviceFile() error {
	f, err := os.OpenFile(g.devicePath, os.O_RDONLY, 0)
	if err != nil {
		switch {
		case errors.Is(err, os.ErrNotExist):
			return &AcquireError{Kind: KindDeviceNotFound, Device: g.devicePath, Err: err}
		case errors.Is(err, os.ErrPermission):
			return &AcquireError{Kind: KindPermissionDenied, Device: g.devicePath, Err: err}
		default:
			return g.classifyCaptureError(err)
		}
	}
	_ = f.Close()
	return nil
}

// classifyCaptureError はキャプチャ失敗をAcquireErrorに分類する
func (g *FFmpegGrabber) classifyCaptureError(err error) error {
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "permission denied"), strings.Contains(msg, "not permitted"):
		return &AcquireError{Kind: KindPermissionDenied, Device: g.devicePath, Err: err}
	case strings.Contains(msg, "no such file"), strings.Contains(msg, "no such device"):
		return &AcquireError{Kind: KindDeviceNotFound, Device: g.devicePath, Err: err}
	case strings.Contains(msg, "busy"):
		return &AcquireError{Kind: KindDeviceBusy, Device: g.devicePath, Err: err}
	case strings.Contains(msg, "invalid argument"), strings.Contains(msg, "not supported"),
		strings.Contains(msg, "video_size"):
		return &AcquireError{Kind: KindConstraintsUnsatisfiable, Device: g.devicePath, Err: err}
	default:
		return &AcquireError{Kind: KindUnknown, Device: g.devicePath, Err: err}
	}
}
