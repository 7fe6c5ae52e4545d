package utils

import (
	"fmt"
	"time"
)

// FormatDuration formats a duration as a human-readable string with two units max.
// E.g., "5d 3h", "2h 30m", "45s"
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}

	totalSeconds := int(d.Seconds())
	days := totalSeconds / 86400
	hours := (totalSeconds % 86400) / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
