package common

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DayKeyLayout 日期鍵格式
const DayKeyLayout = "2006-01-02"

// GenerateUUID 生成 UUID
func GenerateUUID() string {
	return uuid.New().String()
}

// DayKey 將時間轉為日期鍵
func DayKey(t time.Time) string {
	return t.Format(DayKeyLayout)
}

// RollingDayKeys 從起始日期產生連續 n 天的日期鍵
func RollingDayKeys(start string, n int) ([]string, error) {
	t, err := time.Parse(DayKeyLayout, start)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, n)
	for i := 0; i < n; i++ {
		keys = append(keys, DayKey(t.AddDate(0, 0, i)))
	}
	return keys, nil
}

// TruncateRunes 依 rune 截斷字串
func TruncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// NormalizeSpace 去除前後空白並合併連續空白
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
