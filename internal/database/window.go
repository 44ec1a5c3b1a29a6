package database

import (
	"fmt"
	"time"
)

// Window is an analytics time range ending now.
type Window string

const (
	Window7Days  Window = "7d"
	Window30Days Window = "30d"
	Window90Days Window = "90d"
	WindowAll    Window = "all"
)

// ParseWindow validates a window name. An empty string yields the fallback.
func ParseWindow(s string, fallback Window) (Window, error) {
	if s == "" {
		s = string(fallback)
	}
	switch w := Window(s); w {
	case Window7Days, Window30Days, Window90Days, WindowAll:
		return w, nil
	}
	return "", fmt.Errorf("unknown time range %q (want 7d, 30d, 90d or all)", s)
}

// Since returns the inclusive lower bound of the window, or nil for all history.
func (w Window) Since(now time.Time) *time.Time {
	var days int
	switch w {
	case Window7Days:
		days = 7
	case Window30Days:
		days = 30
	case Window90Days:
		days = 90
	default:
		return nil
	}
	t := now.Add(-time.Duration(days) * 24 * time.Hour)
	return &t
}

// Label formats the window for display.
func (w Window) Label() string {
	switch w {
	case Window7Days:
		return "Last 7 days"
	case Window30Days:
		return "Last 30 days"
	case Window90Days:
		return "Last 90 days"
	case WindowAll:
		return "All time"
	}
	return string(w)
}
