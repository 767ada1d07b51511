package ui

import "fmt"

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorWarn   = 214 // orange
	colorError  = 203 // red
	colorOK     = 114 // green
)

var noColor bool

func render256(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return render256(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return render256(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return render256(colorCmd, s) }

// RenderWarn returns s in the warning (orange) color.
func RenderWarn(s string) string { return render256(colorWarn, s) }

// RenderError returns s in the error (red) color.
func RenderError(s string) string { return render256(colorError, s) }

// RenderOK returns s in the success (green) color.
func RenderOK(s string) string { return render256(colorOK, s) }

// RenderBold returns s in bold.
func RenderBold(s string) string {
	if noColor {
		return s
	}
	return "\x1b[1m" + s + "\x1b[0m"
}

// RenderRGB returns s in a 24-bit foreground color.
func RenderRGB(r, g, b uint8, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;2;%d;%d;%dm%s\x1b[0m", r, g, b, s)
}

// RenderStatus colors a solver status: active in green, anything else muted.
func RenderStatus(status string, active bool) string {
	if status == "" {
		return RenderMuted("unknown")
	}
	if active {
		return RenderOK(status)
	}
	return RenderMuted(status)
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}

// SetColor enables or disables color output globally.
func SetColor(enabled bool) {
	noColor = !enabled
}

// ColorEnabled reports whether color output is on.
func ColorEnabled() bool {
	return !noColor
}
