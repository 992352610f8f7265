package camera

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ScanDevices はシステム内の利用可能なカメラデバイスをスキャンする
func ScanDevices(ctx context.Context) ([]string, error) {
	// /dev/video* パターンでデバイスを検索
	matches, err := filepath.Glob("/dev/video*")
	if err != nil {
		return nil, fmt.Errorf("デバイスのスキャンに失敗: %w", err)
	}

	// デバイス番号でソート
	sort.Slice(matches, func(i, j int) bool {
		return extractDeviceNumber(matches[i]) < extractDeviceNumber(matches[j])
	})

	var devices []string
	for _, match := range matches {
		select {
		case <-ctx.Done():
			return devices, ctx.Err()
		default:
		}

		if IsDeviceAvailable(match) {
			devices = append(devices, match)
		}
	}

	return devices, nil
}

// IsDeviceAvailable は指定されたデバイスが存在し読み取り可能かチェックする
func IsDeviceAvailable(device string) bool {
	info, err := os.Stat(device)
	if err != nil {
		return false
	}
	// キャラクタデバイスのみ対象
	return info.Mode()&os.ModeCharDevice != 0
}

// DefaultDevice は優先デバイスが利用可能ならそれを、そうでなければ
// スキャン結果の先頭デバイスを返す。見つからない場合は優先デバイスをそのまま返す
func DefaultDevice(ctx context.Context, preferred string) string {
	if IsDeviceAvailable(preferred) {
		return preferred
	}

	devices, err := ScanDevices(ctx)
	if err != nil || len(devices) == 0 {
		return preferred
	}
	return devices[0]
}

// extractDeviceNumber はデバイスパスから番号を抽出する
func extractDeviceNumber(device string) int {
	numStr := strings.TrimPrefix(device, "/dev/video")
	if num, err := strconv.Atoi(numStr); err == nil {
		return num
	}
	return 999
}
