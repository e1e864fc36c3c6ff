package console

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Forge palette.
var (
	colorPrimary = lipgloss.Color("#C678DD") // magenta for headlines
	colorSuccess = lipgloss.Color("#98C379")
	colorWarning = lipgloss.Color("#E5C07B")
	colorError   = lipgloss.Color("#E06C75")
	colorMuted   = lipgloss.Color("#5C6370")
)

var (
	styleHeadline = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	styleRule     = lipgloss.NewStyle().Bold(true)
	styleSuccess  = lipgloss.NewStyle().Foreground(colorSuccess)
	styleWarning  = lipgloss.NewStyle().Foreground(colorWarning)
	styleError    = lipgloss.NewStyle().Foreground(colorError)
	styleMuted    = lipgloss.NewStyle().Foreground(colorMuted)
	stylePanel    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Padding(0, 1)
)

// Terminal renders events with lipgloss styling to a writer, normally
// stdout. Log output goes to stderr, so stdout stays readable.
type Terminal struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTerminal returns a Sink that writes styled output to w.
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

func (t *Terminal) printf(style lipgloss.Style, format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.w, style.Render(fmt.Sprintf(format, args...)))
}

func (t *Terminal) Headline(format string, args ...any) {
	t.printf(styleHeadline, format, args...)
}

func (t *Terminal) Rule(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.w, styleRule.Render("--- "+fmt.Sprintf(format, args...)+" ---"))
}

func (t *Terminal) Info(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.w, fmt.Sprintf(format, args...))
}

func (t *Terminal) Detail(format string, args ...any) {
	t.printf(styleMuted, format, args...)
}

func (t *Terminal) Success(format string, args ...any) {
	t.printf(styleSuccess, format, args...)
}

func (t *Terminal) Warn(format string, args ...any) {
	t.printf(styleWarning, format, args...)
}

func (t *Terminal) Error(format string, args ...any) {
	t.printf(styleError, format, args...)
}

func (t *Terminal) Panel(title, body string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	content := styleRule.Render(title)
	if body != "" {
		content += "\n" + body
	}
	fmt.Fprintln(t.w, stylePanel.Render(content))
}

func (t *Terminal) Blank() {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.w)
}
