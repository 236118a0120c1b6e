// Package console renders client state on a terminal and drives the
// interactive command loop.
package console

import (
	"fmt"
	"io"
	"sync"
)

// Printer serializes writes to the terminal. The command loop and the
// presenter share one printer so streamed chunks and command feedback
// never interleave mid-write.
type Printer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewPrinter wraps out, usually os.Stdout.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// Printf writes a formatted string.
func (p *Printer) Printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...) //nolint:errcheck
}

// Write writes s verbatim.
func (p *Printer) Write(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	io.WriteString(p.out, s) //nolint:errcheck
}
