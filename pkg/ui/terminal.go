package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/jedib0t/go-pretty/v6/text"
)

// Banner printed by commands that talk to the API
const Banner = `
  ┌──────────────────────────────────────────────┐
  │  twscraper · followings graph collector      │
  └──────────────────────────────────────────────┘
`

// Color functions for terminal output
var (
	Cyan    = colorize(text.FgCyan)
	Yellow  = colorize(text.FgYellow)
	Red     = colorize(text.FgRed)
	Green   = colorize(text.FgGreen)
	Magenta = colorize(text.FgMagenta)
	Dim     = colorize(text.Faint)
)

var (
	mu    sync.Mutex
	out   io.Writer = os.Stdout
	quiet bool
)

func colorize(c text.Color) func(string) string {
	colors := text.Colors{c}
	return func(s string) string {
		return colors.Sprint(s)
	}
}

// SetOutput redirects all printing, returning the previous writer
func SetOutput(w io.Writer) io.Writer {
	mu.Lock()
	defer mu.Unlock()
	prev := out
	out = w
	return prev
}

// Output returns the writer for regular command output, which is
// discarded in quiet mode
func Output() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	if quiet {
		return io.Discard
	}
	return out
}

// SetQuietMode suppresses everything except errors
func SetQuietMode(q bool) {
	mu.Lock()
	quiet = q
	mu.Unlock()
}

// SetColorEnabled toggles ANSI colors for messages and tables
func SetColorEnabled(enabled bool) {
	if enabled {
		text.EnableColors()
	} else {
		text.DisableColors()
	}
}

func emit(always bool, s string) {
	mu.Lock()
	defer mu.Unlock()
	if quiet && !always {
		return
	}
	fmt.Fprintln(out, s)
}

// PrintBanner prints the banner
func PrintBanner() {
	emit(false, Cyan(Banner))
}

// PrintError prints an error message in red, with an optional detail
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 && fmt.Sprint(args[0]) != "" {
		msg += ": " + fmt.Sprint(args[0])
	}
	emit(true, Red(msg))
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	emit(false, Green(msg))
}

// PrintInfo prints a label and value
func PrintInfo(label string, value string) {
	emit(false, fmt.Sprintf("%s: %s", Cyan(label), Yellow(value)))
}

// PrintWarning prints a warning message in yellow, with an optional detail
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 && fmt.Sprint(args[0]) != "" {
		msg += ": " + fmt.Sprint(args[0])
	}
	emit(false, Yellow(msg))
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	emit(false, Magenta(msg))
}
