// Package tui renders agent results, comparison tables, and the
// interactive run-history browser for the terminal.
package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatCost formats a dollar amount as "$X.XXXX". Zero or negative
// means the backend reported no cost.
func FormatCost(costUSD float64) string {
	if costUSD <= 0 {
		return "—"
	}
	return fmt.Sprintf("$%.4f", costUSD)
}

// FormatDuration renders a duration as "Xms", "X.Xs" or "X.Xm".
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}

// FormatTokens renders reported token counts as "↓in ↑out". Zero
// counts are omitted; all-zero means the backend reported none.
func FormatTokens(input, output int) string {
	if input <= 0 && output <= 0 {
		return "—"
	}
	parts := make([]string, 0, 2)
	if input > 0 {
		parts = append(parts, "↓"+groupDigits(input))
	}
	if output > 0 {
		parts = append(parts, "↑"+groupDigits(output))
	}
	return strings.Join(parts, " ")
}

// groupDigits inserts thousands separators: 1234567 becomes "1,234,567".
func groupDigits(n int) string {
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// clip bounds s to n bytes.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
