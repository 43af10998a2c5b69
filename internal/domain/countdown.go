package domain

import (
	"fmt"
	"time"
)

// Countdown renders the wall-clock delta until a retry fires, bucketed into
// seconds, minutes, or hours. Display-only, derived state.
func Countdown(nextRetryAt, now time.Time) string {
	d := nextRetryAt.Sub(now)
	if d <= 0 {
		return "due"
	}
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
}
