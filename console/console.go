// Package console renders operator-facing output for the migration tool:
// status markers, highlighted file names and tabular query previews.
package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

const (
	markSuccess = "✓"
	markWarn    = "⚠"
	markFail    = "✖"
)

// Printer writes styled lines to an output stream.
// Colors are only emitted when the stream is a terminal.
type Printer struct {
	w        io.Writer
	renderer *lipgloss.Renderer

	success lipgloss.Style
	warn    lipgloss.Style
	fail    lipgloss.Style
	dim     lipgloss.Style
	bold    lipgloss.Style
	accent  lipgloss.Style
	ext     lipgloss.Style
}

// New creates a Printer writing to w.
func New(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)

	return &Printer{
		w:        w,
		renderer: r,
		success:  r.NewStyle().Foreground(lipgloss.Color("2")),
		warn:     r.NewStyle().Foreground(lipgloss.Color("3")),
		fail:     r.NewStyle().Foreground(lipgloss.Color("1")),
		dim:      r.NewStyle().Faint(true),
		bold:     r.NewStyle().Bold(true),
		accent:   r.NewStyle().Foreground(lipgloss.Color("6")),
		ext:      r.NewStyle().Foreground(lipgloss.Color("4")),
	}
}

// Success prints a green check mark followed by msg.
func (p *Printer) Success(msg string) {
	p.line(p.success.Render(markSuccess), msg)
}

// Warn prints a yellow warning marker followed by msg.
func (p *Printer) Warn(msg string) {
	p.line(p.warn.Render(markWarn), msg)
}

// Fail prints a red cross followed by msg and, when err is not nil, the error detail.
func (p *Printer) Fail(msg string, err error) {
	p.line(p.fail.Render(markFail), msg)
	if err != nil {
		p.line(p.fail.Render("  Error: " + err.Error()))
	}
}

// Info prints a dimmed informational line.
func (p *Printer) Info(msg string) {
	p.line(p.dim.Render(msg))
}

// Title prints a bold heading.
func (p *Printer) Title(msg string) {
	p.line(p.bold.Render(msg))
}

// MenuItem prints a numbered menu entry.
func (p *Printer) MenuItem(key, label string) {
	p.line(p.accent.Render(key+"."), label)
}

// Blank prints an empty line.
func (p *Printer) Blank() {
	fmt.Fprintln(p.w)
}

// Accent highlights s without printing it.
func (p *Printer) Accent(s string) string {
	return p.accent.Render(s)
}

// FileName highlights a path: directory dimmed, base name accented, extension blue.
func (p *Printer) FileName(path string) string {
	dir, name := "", path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		dir, name = path[:i+1], path[i+1:]
	}

	base, ext := name, ""
	if i := strings.Index(name, "."); i >= 0 {
		base, ext = name[:i], name[i:]
	}

	var b strings.Builder
	if dir != "" {
		b.WriteString(p.dim.Render(dir))
	}
	b.WriteString(p.accent.Render(base))
	if ext != "" {
		b.WriteString(p.ext.Render(ext))
	}
	return b.String()
}

// Table prints rows under a header. Nothing is printed when columns is empty.
func (p *Printer) Table(columns []string, rows [][]string) {
	if len(columns) == 0 {
		return
	}

	header := p.renderer.NewStyle().Bold(true).Padding(0, 1)
	cell := p.renderer.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(p.dim).
		Headers(columns...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})

	fmt.Fprintln(p.w, t.String())
}

func (p *Printer) line(parts ...string) {
	fmt.Fprintln(p.w, strings.Join(parts, " "))
}
