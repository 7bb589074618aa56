package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"operaciones/internal/controller"
)

// promptConfirmer asks yes/no questions on the terminal. End of input
// counts as no.
type promptConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

var _ controller.Confirmer = (*promptConfirmer)(nil)

func newPromptConfirmer(in io.Reader, out io.Writer) *promptConfirmer {
	return &promptConfirmer{in: bufio.NewReader(in), out: out}
}

func (p *promptConfirmer) Confirm(ctx context.Context, message string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fmt.Fprintf(p.out, "%s [y/N]: ", message)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		if err == io.EOF {
			fmt.Fprintln(p.out)
			return false, nil
		}
		return false, fmt.Errorf("read answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "s", "si", "sí":
		return true, nil
	}
	return false, nil
}

// consoleNotifier prints controller messages with a coloured mark.
type consoleNotifier struct {
	out io.Writer
}

var _ controller.Notifier = consoleNotifier{}

func (n consoleNotifier) Success(_ context.Context, message string) {
	fmt.Fprintf(n.out, "%s %s\n", color.New(color.FgGreen).Sprint("✓"), message)
}

func (n consoleNotifier) Failure(_ context.Context, message string, _ error) {
	fmt.Fprintf(n.out, "%s %s\n", color.New(color.FgRed).Sprint("✗"), message)
}
