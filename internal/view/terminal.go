package view

import (
	"fmt"
	"io"
	"sync"

	"github.com/luciancaetano/wsdemo"
)

// Terminal renders a session as lines on a writer:
//
//	* Connected (connected)
//	> text I sent
//	< text I received
//
// The input is a line buffer set by the caller before each submit.
type Terminal struct {
	mu    sync.Mutex
	w     io.Writer
	input string
}

func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

func (t *Terminal) SetStatus(status wsdemo.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.w, "* %s (%s)\n", status.Label, status.Class)
}

func (t *Terminal) AppendEntry(entry wsdemo.Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	marker := "<"
	if entry.Kind == wsdemo.EntrySent {
		marker = ">"
	}
	fmt.Fprintf(t.w, "%s %s\n", marker, entry.Text)
}

// ScrollToNewest is a no-op: the newest line is always the last one written.
func (t *Terminal) ScrollToNewest() {}

func (t *Terminal) InputValue() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.input
}

func (t *Terminal) SetInput(value string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.input = value
}

func (t *Terminal) ClearInput() {
	t.SetInput("")
}

var _ wsdemo.View = (*Terminal)(nil)
