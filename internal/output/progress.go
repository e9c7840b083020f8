package output

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

// writerIsTTY returns true if the given writer exposes an Fd() method
// (e.g. *os.File) and that fd is a terminal. Falls back to false for
// plain io.Writer values such as *bytes.Buffer.
func writerIsTTY(w io.Writer) bool {
	type fder interface {
		Fd() uintptr
	}
	if f, ok := w.(fder); ok {
		return isatty.IsTerminal(f.Fd())
	}
	return false
}

// ProgressBar displays a byte-based progress bar with a percentage and the
// file currently being written.
// Example: [=========>          ]  45%  12 MiB / 26 MiB  Flowly.exe
type ProgressBar struct {
	total   int64
	current int64
	label   string
	width   int
	mu      sync.Mutex
	writer  io.Writer
}

// NewProgress creates a progress bar for total bytes writing to w.
func NewProgress(w io.Writer, total int64) *ProgressBar {
	return &ProgressBar{
		total:  total,
		width:  30,
		writer: w,
	}
}

// SetLabel sets the text shown after the bar, usually the current file.
func (p *ProgressBar) SetLabel(label string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.label = label
	p.render()
}

// Add advances the progress by n bytes and redraws the bar.
func (p *ProgressBar) Add(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current += n
	if p.current > p.total {
		p.current = p.total
	}
	p.render()
}

// Finish completes the bar and moves to a new line.
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	alreadyDone := p.current == p.total
	p.current = p.total
	p.label = ""
	if writerIsTTY(p.writer) {
		p.render()
		fmt.Fprintln(p.writer)
	} else if !alreadyDone {
		// Non-TTY renders only the completion line, avoid a duplicate.
		p.render()
	}
}

// render draws the progress bar (must be called with lock held).
func (p *ProgressBar) render() {
	percentage := 100
	filled := p.width
	if p.total > 0 {
		percentage = int(p.current * 100 / p.total)
		filled = int(p.current * int64(p.width) / p.total)
	}

	var bar strings.Builder
	bar.WriteString("[")
	for i := 0; i < p.width; i++ {
		switch {
		case i < filled-1:
			bar.WriteString("=")
		case i == filled-1:
			bar.WriteString(">")
		default:
			bar.WriteString(" ")
		}
	}
	bar.WriteString("]")

	counts := fmt.Sprintf("%s / %s", humanize.IBytes(uint64(p.current)), humanize.IBytes(uint64(p.total)))
	if writerIsTTY(p.writer) {
		fmt.Fprintf(p.writer, "\r\033[2K%s %3d%%  %s  %s", bar.String(), percentage, counts, p.label)
	} else if p.current == p.total {
		fmt.Fprintf(p.writer, "%s %3d%%  %s\n", bar.String(), percentage, counts)
	}
}
