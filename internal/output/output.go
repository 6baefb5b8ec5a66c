// Package output is the CLI's terminal voice. A Writer renders build and
// dev-loop progress with prefixes that survive plain pipes, colors when the
// target is a real terminal, and prompts only when a human is attached.
// Commands hold one shared Writer; nothing else writes to stderr directly.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	stepStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	okStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	errStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	warnStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
	dimStyle  = lipgloss.NewStyle().Faint(true)
	keyStyle  = lipgloss.NewStyle().Bold(true)
)

// Writer renders styled CLI output. New gives the production writer on
// stderr; NewTest gives a plain, non-interactive one for buffers.
type Writer struct {
	w           io.Writer
	interactive bool // terminal AND not CI
	color       bool // terminal AND not NO_COLOR
	verbose     bool
}

// New detects the capabilities of stderr. CI (CI or GITHUB_ACTIONS set)
// disables prompts, NO_COLOR disables styling.
func New() *Writer {
	isTerm := term.IsTerminal(int(os.Stderr.Fd()))
	isCI := os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != ""
	noColor := os.Getenv("NO_COLOR") != ""

	return &Writer{
		w:           os.Stderr,
		interactive: isTerm && !isCI,
		color:       isTerm && !noColor,
	}
}

// NewTest returns a plain non-interactive Writer targeting w.
func NewTest(w io.Writer) *Writer {
	return &Writer{w: w}
}

// SetVerbose enables Debug output.
func (w *Writer) SetVerbose(v bool) {
	w.verbose = v
}

// IsInteractive reports whether prompts can be shown.
func (w *Writer) IsInteractive() bool {
	return w.interactive
}

// labeled prints "label message", styling the label in color mode. The
// label stays in plain mode so piped output remains grep-able.
func (w *Writer) labeled(label string, style lipgloss.Style, format string, args []interface{}) {
	if w.color {
		label = style.Render(label)
	}
	fmt.Fprintf(w.w, "%s %s\n", label, fmt.Sprintf(format, args...))
}

// Step announces a unit of work, like loading the manifest or starting the
// compiler.
func (w *Writer) Step(format string, args ...interface{}) {
	w.labeled("->", stepStyle, format, args)
}

// Success reports a completed operation.
func (w *Writer) Success(format string, args ...interface{}) {
	w.labeled("OK", okStyle, format, args)
}

// Error reports a failure. The process exit code is the caller's problem.
func (w *Writer) Error(format string, args ...interface{}) {
	w.labeled("ERROR", errStyle, format, args)
}

// Warning reports a recoverable problem, like a missing icon that the build
// drops and continues without.
func (w *Writer) Warning(format string, args ...interface{}) {
	w.labeled("WARNING", warnStyle, format, args)
}

// indented prints msg under the current step, dimmed in color mode.
func (w *Writer) indented(format string, args []interface{}) {
	msg := fmt.Sprintf(format, args...)
	if w.color {
		msg = dimStyle.Render(msg)
	}
	fmt.Fprintf(w.w, "   %s\n", msg)
}

// Info prints supplementary detail under a step.
func (w *Writer) Info(format string, args ...interface{}) {
	w.indented(format, args)
}

// Debug prints diagnostics shown only in verbose mode. The build driver
// logs per-stage timings through this; the dev loop traces watch batches.
func (w *Writer) Debug(format string, args ...interface{}) {
	if !w.verbose {
		return
	}
	w.indented(format, args)
}

// KeyValue is one row of a Result summary.
type KeyValue struct {
	Key   string
	Value string
}

// Result prints a summary block of aligned key-value pairs, like the
// output path, entry count, and duration after a build.
func (w *Writer) Result(pairs []KeyValue) {
	if len(pairs) == 0 {
		return
	}

	width := 0
	for _, p := range pairs {
		if len(p.Key) > width {
			width = len(p.Key)
		}
	}

	fmt.Fprintln(w.w)
	for _, p := range pairs {
		pad := strings.Repeat(" ", width-len(p.Key))
		key := p.Key
		if w.color {
			key = keyStyle.Render(key)
		}
		fmt.Fprintf(w.w, "  %s%s  %s\n", key, pad, p.Value)
	}
}

// Println prints a plain line with no prefix or styling. JSON summaries and
// the version line use this.
func (w *Writer) Println(format string, args ...interface{}) {
	fmt.Fprintf(w.w, format+"\n", args...)
}
