package utils

import (
	"fmt"
	"time"
)

// TruncateString shortens a string to maxLen runes, ellipsized.
func TruncateString(s string, maxLen int) string {
	if maxLen <= 3 {
		maxLen = 3
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}

// FormatCount renders viewer and like counts the way the webapp does:
// 999 stays literal, thousands and millions get a suffix.
func FormatCount(n int) string {
	switch {
	case n >= 1_000_000:
		return trimZero(fmt.Sprintf("%.1fM", float64(n)/1_000_000))
	case n >= 1_000:
		return trimZero(fmt.Sprintf("%.1fK", float64(n)/1_000))
	default:
		return fmt.Sprintf("%d", n)
	}
}

func trimZero(s string) string {
	if len(s) > 3 && s[len(s)-3:len(s)-1] == ".0" {
		return s[:len(s)-3] + s[len(s)-1:]
	}
	return s
}

// FormatTimeDuration renders an elapsed duration as h:mm:ss or m:ss.
func FormatTimeDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatTimestamp renders a unix-millisecond comment timestamp as a
// local clock time.
func FormatTimestamp(ms int64) string {
	return time.UnixMilli(ms).Local().Format("15:04")
}
