// Package cli provides shared formatting helpers for the fpmsyncd show
// commands.
package cli

import "os"

// colorEnabled is false when NO_COLOR env var is set (per no-color.org).
var colorEnabled = os.Getenv("NO_COLOR") == ""

// Green wraps s in ANSI green. Returns s unchanged when NO_COLOR is set.
func Green(s string) string {
	return paint("\033[32m", s)
}

// Yellow wraps s in ANSI yellow.
func Yellow(s string) string {
	return paint("\033[33m", s)
}

// Red wraps s in ANSI red.
func Red(s string) string {
	return paint("\033[31m", s)
}

// Dim wraps s in ANSI dim.
func Dim(s string) string {
	return paint("\033[2m", s)
}

func paint(code, s string) string {
	if !colorEnabled {
		return s
	}
	return code + s + "\033[0m"
}

// WarmState colors a warm-restart state name: reconciled is green, the
// in-progress states yellow, anything else dim.
func WarmState(state string) string {
	switch state {
	case "reconciled":
		return Green(state)
	case "initialized", "restored":
		return Yellow(state)
	case "":
		return Dim("-")
	}
	return Dim(state)
}
