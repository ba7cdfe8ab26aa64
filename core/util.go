package core

import (
	"strings"
	"time"
)

// DateLayout is the layout of every calendar date exchanged with clients (YYYY-MM-DD).
const DateLayout = "2006-01-02"

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// Today returns the current date formatted with DateLayout.
func Today() string {
	return NowFunc().Format(DateLayout)
}

// NowFunc is mockable in tests.
var NowFunc = time.Now
