package models

import (
	"fmt"
	"strconv"
	"strings"
)

// TimeControl は "5+3" 形式（持ち時間5分＋1手3秒加算）のタイムコントロールです。
type TimeControl struct {
	BaseMs      int64 // 初期持ち時間（ミリ秒）
	IncrementMs int64 // フィッシャー加算（ミリ秒）
}

// ParseTimeControl は "<baseMinutes>+<incrementSeconds>" 形式の文字列を解析します。
func ParseTimeControl(s string) (TimeControl, error) {
	var tc TimeControl
	parts := strings.Split(s, "+")
	if len(parts) != 2 {
		return tc, fmt.Errorf("invalid time control format: %q", s)
	}
	baseMin, err := strconv.Atoi(parts[0])
	if err != nil || baseMin <= 0 {
		return tc, fmt.Errorf("invalid base minutes in time control: %q", s)
	}
	incSec, err := strconv.Atoi(parts[1])
	if err != nil || incSec < 0 {
		return tc, fmt.Errorf("invalid increment seconds in time control: %q", s)
	}
	tc.BaseMs = int64(baseMin) * 60 * 1000
	tc.IncrementMs = int64(incSec) * 1000
	return tc, nil
}
