package downtime

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/benmeehan/loomwatch/internal/models"
)

// Shift boundaries in minutes since midnight. Shift 3 covers the rest and wraps midnight.
const (
	shift1Start = 6 * 60
	shift2Start = 14*60 + 30
	shift3Start = 22*60 + 52
)

// ShiftOf returns the shift a wall-clock time belongs to, in the location of t.
func ShiftOf(t time.Time) models.Shift {
	minutes := t.Hour()*60 + t.Minute()
	switch {
	case minutes >= shift1Start && minutes < shift2Start:
		return models.Shift1
	case minutes >= shift2Start && minutes < shift3Start:
		return models.Shift2
	default:
		return models.Shift3
	}
}

// RoundMinutes converts d to minutes rounded to two decimals.
func RoundMinutes(d time.Duration) float64 {
	return math.Round(d.Minutes()*100) / 100
}

// FormatDuration renders d as dd-hh:mm:ss, or hh:mm:ss when it is shorter than a day.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	s := total % 60
	m := (total / 60) % 60
	h := (total / 3600) % 24
	days := total / 86400

	if days > 0 {
		return fmt.Sprintf("%02d-%02d:%02d:%02d", days, h, m, s)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// CleanReason strips non-ASCII characters (icons, accents) from a status label and
// upper-cases it. If nothing is left the upper-cased label is returned unchanged.
func CleanReason(label string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, label)
	cleaned = strings.ToUpper(strings.TrimSpace(cleaned))
	if cleaned == "" {
		return strings.ToUpper(label)
	}
	return cleaned
}
