package document

import "fmt"

// FormatDuration formats a duration in minutes as "3h" or "3h 15m".
func FormatDuration(mins int) string {
	h := mins / 60
	m := mins % 60
	if m != 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dh", h)
}

// FormatDurationTabular formats a duration in minutes with fixed-width
// fields, for aligned listings.
func FormatDurationTabular(mins int) string {
	return fmt.Sprintf("%3dh %02dm", mins/60, mins%60)
}
