package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Prompter asks single-line questions on a line-based input stream.
type Prompter struct {
	in    *bufio.Reader
	out   io.Writer
	style lipgloss.Style
}

// NewPrompter creates a Prompter reading answers from in and writing questions to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		in:    bufio.NewReader(in),
		out:   out,
		style: lipgloss.NewRenderer(out).NewStyle().Foreground(lipgloss.Color("4")),
	}
}

type answer struct {
	line string
	err  error
}

// PromptLine writes question and blocks until one line is read or ctx is done.
// The trailing newline is stripped. A final line without a newline is still
// returned; end of input with nothing read is an error.
//
// A canceled prompt leaves its read pending, so the Prompter must not be
// reused after ctx is done.
func (p *Prompter) PromptLine(ctx context.Context, question string) (string, error) {
	fmt.Fprint(p.out, p.style.Render("? "+question))

	ch := make(chan answer, 1)
	go func() {
		line, err := p.in.ReadString('\n')
		ch <- answer{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("prompt canceled: %w", ctx.Err())
	case a := <-ch:
		line := strings.TrimRight(a.line, "\r\n")
		if a.err != nil {
			if errors.Is(a.err, io.EOF) && a.line != "" {
				return line, nil
			}
			return "", fmt.Errorf("failed to read answer: %w", a.err)
		}
		return line, nil
	}
}
