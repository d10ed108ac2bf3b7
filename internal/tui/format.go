package tui

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/pricecast/internal/session"
)

// formatElapsed renders a round-trip time as "X.Xms" or "X.Xs".
func formatElapsed(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// banner renders the session line shown above the form.
func banner(rec *session.Record) string {
	if rec == nil {
		return guestStyle.Render("Browsing as guest. Sign in with pcx signin.")
	}
	line := userStyle.Render("● "+rec.DisplayName()) + dimStyle.Render(" via "+rec.Provider)
	if rec.TS > 0 {
		line += dimStyle.Render(" since " + rec.SignedInAt().Local().Format("Jan 2 15:04"))
	}
	return line
}
