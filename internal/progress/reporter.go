// Package progress renders session lifecycle events for the terminal.
package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"

	"github.com/ziadkadry99/zipsite/internal/session"
)

// steps is the resolution of the progress bar.
const steps = 100

// Reporter provides progress feedback while an archive loads.
type Reporter interface {
	Start(source string)
	Update(fraction float64, state string)
	Finish(err string)
}

// NewReporter returns a CIReporter if the CI environment variable is set,
// or a TerminalReporter otherwise.
func NewReporter() Reporter {
	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return &CIReporter{w: os.Stderr}
	}
	return &TerminalReporter{}
}

// Observe adapts r to a session event subscriber.
func Observe(r Reporter) func(session.Event) {
	return func(ev session.Event) {
		switch ev.Kind {
		case session.EventBegin:
			r.Start(ev.Source)
		case session.EventProgress:
			r.Update(ev.Progress, ev.State)
		case session.EventComplete:
			r.Update(1, ev.State)
			r.Finish("")
		case session.EventFail, session.EventAbort:
			r.Finish(ev.Error)
		}
	}
}

// TerminalReporter displays a progress bar in the terminal.
type TerminalReporter struct {
	bar *progressbar.ProgressBar
}

func (r *TerminalReporter) Start(source string) {
	r.bar = progressbar.NewOptions(steps,
		progressbar.OptionSetDescription("Loading "+source),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)
}

func (r *TerminalReporter) Update(fraction float64, state string) {
	if r.bar != nil {
		r.bar.Describe(state)
		_ = r.bar.Set(int(fraction * steps))
	}
}

func (r *TerminalReporter) Finish(err string) {
	if r.bar != nil {
		if err != "" {
			_ = r.bar.Exit()
		} else {
			_ = r.bar.Finish()
		}
	}
}

// CIReporter prints line-by-line progress suitable for CI logs. It only
// prints when the state changes or another tenth of the work is done.
type CIReporter struct {
	w      io.Writer
	source string
	state  string
	tenth  int
}

// NewCIReporter writes to w.
func NewCIReporter(w io.Writer) *CIReporter {
	return &CIReporter{w: w}
}

func (r *CIReporter) Start(source string) {
	r.source, r.state, r.tenth = source, "", 0
	fmt.Fprintf(r.w, "Loading %s\n", source)
}

func (r *CIReporter) Update(fraction float64, state string) {
	tenth := int(fraction * 10)
	if state == r.state && tenth <= r.tenth {
		return
	}
	r.state, r.tenth = state, tenth
	fmt.Fprintf(r.w, "[%3.0f%%] %s\n", fraction*100, state)
}

func (r *CIReporter) Finish(err string) {
	if err != "" {
		fmt.Fprintf(r.w, "Loading %s failed: %s\n", r.source, err)
		return
	}
	fmt.Fprintf(r.w, "Loaded %s\n", r.source)
}
