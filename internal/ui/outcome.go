package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/rileyhilliard/doorctl/internal/door"
)

// RenderOutcome formats the result of a door request: a status line, then
// the message indented below it.
//
//	✓ front: open 0.4s
//	  opened
func RenderOutcome(label string, action door.Action, o door.Outcome, elapsed time.Duration) string {
	var b strings.Builder

	switch o.Code {
	case door.Success:
		b.WriteString(SuccessStyle().Render(SymbolSuccess))
		fmt.Fprintf(&b, " %s: %s", label, action)
	case door.RemoteError:
		b.WriteString(ErrorStyle().Render(SymbolFail))
		fmt.Fprintf(&b, " %s: %s refused by the door", label, action)
	default:
		b.WriteString(ErrorStyle().Render(SymbolFail))
		fmt.Fprintf(&b, " %s: %s failed", label, action)
	}
	if elapsed > 0 {
		b.WriteString(" " + MutedStyle().Render(formatDuration(elapsed)))
	}
	b.WriteString("\n")

	if msg := strings.TrimRight(o.Message, "\r\n"); msg != "" {
		for _, line := range strings.Split(msg, "\n") {
			b.WriteString("  " + line + "\n")
		}
	}
	return b.String()
}

func formatDuration(d time.Duration) string {
	secs := d.Seconds()
	if secs < 0.1 {
		return fmt.Sprintf("%.2fs", secs)
	}
	return fmt.Sprintf("%.1fs", secs)
}
