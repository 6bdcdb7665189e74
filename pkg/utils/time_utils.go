package utils

import (
	"time"
)

// FormatCTime formats t like strftime("%c") in the C locale,
// e.g. "Mon Jan  2 15:04:05 2006"
func FormatCTime(t time.Time) string {
	return t.Format(time.ANSIC)
}
