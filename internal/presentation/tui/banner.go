package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

// PrintBanner writes the cflow banner followed by the version.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	lines := []struct{ text, color string }{
		{"        __ _               ", "#818cf8"},
		{"   ___ / _| | _____      __", "#a78bfa"},
		{"  / __| |_| |/ _ \\ \\ /\\ / /", "#c084fc"},
		{" | (__|  _| | (_) \\ V  V / ", "#e879f9"},
		{"  \\___|_| |_|\\___/ \\_/\\_/  ", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, p.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, p.String("  v"+strings.TrimSpace(version)).Faint())
	fmt.Fprintln(w)
}
