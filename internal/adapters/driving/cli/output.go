package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	defaultWidth = 80
	maxWidth     = 120
	indent       = 6
)

// printer renders command output. Styling is dropped when the writer is
// not a colour terminal.
type printer struct {
	w       io.Writer
	width   int
	heading lipgloss.Style
	label   lipgloss.Style
	dim     lipgloss.Style
	warn    lipgloss.Style
	ok      lipgloss.Style
	body    lipgloss.Style
}

func newPrinter(cmd *cobra.Command) *printer {
	w := cmd.OutOrStdout()
	r := lipgloss.NewRenderer(w)
	width := terminalWidth(w)

	return &printer{
		w:       w,
		width:   width,
		heading: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")),
		label:   r.NewStyle().Bold(true),
		dim:     r.NewStyle().Foreground(lipgloss.Color("#888888")),
		warn:    r.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
		ok:      r.NewStyle().Foreground(lipgloss.Color("#04B575")),
		body:    r.NewStyle().Width(width - indent).MarginLeft(indent),
	}
}

// terminalWidth returns the width of w when it is a terminal.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return defaultWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= indent*2 {
		return defaultWidth
	}
	return min(width, maxWidth)
}

func (p *printer) printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}

func (p *printer) println(args ...any) {
	fmt.Fprintln(p.w, args...)
}

func (p *printer) section(title string) {
	p.println(p.heading.Render(title))
	p.println(p.dim.Render(strings.Repeat("=", len(title))))
}

func (p *printer) field(name string, value any) {
	p.printf("  %s %v\n", p.label.Render(name+":"), value)
}

func (p *printer) warning(format string, args ...any) {
	p.println(p.warn.Render("Warning: " + fmt.Sprintf(format, args...)))
}

func (p *printer) success(format string, args ...any) {
	p.println(p.ok.Render(fmt.Sprintf(format, args...)))
}

// text prints a wrapped, indented block.
func (p *printer) text(s string) {
	p.println(p.body.Render(strings.TrimSpace(s)))
}

// excerpt shortens s to n words.
func excerpt(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ") + " ..."
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
