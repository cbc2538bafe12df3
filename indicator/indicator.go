// Package indicator provides loading indicators for generation requests.
//
// An indicator is told when an invocation begins and when it ends; it never
// sees the generated text. Showing the result is left to the caller.
package indicator

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/birmacher/capoeira-portal/logger"
	"github.com/fatih/color"
)

var (
	pendingPrefix = color.New(color.FgYellow).SprintFunc()
	donePrefix    = color.New(color.FgGreen).SprintFunc()
)

// Terminal prints a line when a request starts and another when it finishes.
// Several Terminal indicators may share one writer.
type Terminal struct {
	label string
	out   io.Writer
	mu    *sync.Mutex
	now   func() time.Time
	start time.Time
	open  bool
}

// NewTerminal creates a terminal indicator for label writing to out. Indicators
// created with the same lock never interleave their lines.
func NewTerminal(label string, out io.Writer, lock *sync.Mutex) *Terminal {
	if lock == nil {
		lock = &sync.Mutex{}
	}
	return &Terminal{label: label, out: out, mu: lock, now: time.Now}
}

// Begin shows the indicator
func (t *Terminal) Begin() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.start = t.now()
	t.open = true
	fmt.Fprintf(t.out, "%s %s generating...\n", pendingPrefix("[...]"), t.label)
}

// End hides the indicator. Calling End without Begin, or twice, prints nothing.
func (t *Terminal) End() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return
	}
	t.open = false
	elapsed := t.now().Sub(t.start).Round(100 * time.Millisecond)
	fmt.Fprintf(t.out, "%s %s finished in %s\n", donePrefix("[done]"), t.label, elapsed)
}

// Active reports whether Begin was called without a matching End
func (t *Terminal) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

// Log records the request lifecycle in the structured log instead of the terminal
type Log struct {
	label string
	start time.Time
}

func NewLog(label string) *Log {
	return &Log{label: label}
}

func (l *Log) Begin() {
	l.start = time.Now()
	logger.Debugw("Generation started", "label", l.label)
}

func (l *Log) End() {
	logger.Debugw("Generation finished", "label", l.label, "elapsed", time.Since(l.start))
}
