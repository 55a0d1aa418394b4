package tui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Console is the line-oriented terminal used by the interactive commands.
// Output is colored only when out is a terminal.
type Console struct {
	out io.Writer
	in  io.Reader

	info  lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	reply lipgloss.Style
	dim   lipgloss.Style

	once  sync.Once
	lines chan lineResult
}

type lineResult struct {
	text string
	err  error
}

func NewConsole(in io.Reader, out io.Writer) *Console {
	r := lipgloss.NewRenderer(out)
	return &Console{
		in:    in,
		out:   out,
		info:  r.NewStyle().Foreground(lipgloss.Color("6")),
		err:   r.NewStyle().Foreground(lipgloss.Color("1")),
		warn:  r.NewStyle().Foreground(lipgloss.Color("3")),
		reply: r.NewStyle().Foreground(lipgloss.Color("4")),
		dim:   r.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

func (c *Console) Info(format string, args ...any)  { c.println(c.info, format, args...) }
func (c *Console) Error(format string, args ...any) { c.println(c.err, format, args...) }
func (c *Console) Warn(format string, args ...any)  { c.println(c.warn, format, args...) }

// Answer prints a model reply.
func (c *Console) Answer(text string) { c.println(c.reply, "%s", text) }

func (c *Console) println(s lipgloss.Style, format string, args ...any) {
	fmt.Fprintln(c.out, s.Render(fmt.Sprintf(format, args...)))
}

// Input prints prompt and waits for one line. It returns ctx.Err() when ctx
// ends first and io.EOF when input is exhausted. The trailing newline is removed.
func (c *Console) Input(ctx context.Context, prompt string) (string, error) {
	c.once.Do(c.startReader)
	if prompt != "" {
		fmt.Fprintln(c.out, c.info.Render(prompt))
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res, ok := <-c.lines:
		if !ok {
			return "", io.EOF
		}
		return res.text, res.err
	}
}

// startReader reads lines in the background so Input can observe ctx while
// the terminal read blocks.
func (c *Console) startReader() {
	c.lines = make(chan lineResult)
	go func() {
		defer close(c.lines)
		r := bufio.NewReader(c.in)
		for {
			line, err := r.ReadString('\n')
			if line != "" {
				c.lines <- lineResult{text: strings.TrimRight(line, "\r\n")}
			}
			if err != nil {
				if err != io.EOF {
					c.lines <- lineResult{err: err}
				}
				return
			}
		}
	}()
}
