package terminal

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"golang.org/x/term"

	"tweetdl/internal/core/domain"
)

const (
	successMark = "✔"
	failureMark = "✖"
	frameDelay  = 80 * time.Millisecond
)

// Progress renders stage events. On a terminal it animates a spinner whose
// suffix follows the current stage; elsewhere it prints one line per stage.
type Progress struct {
	mu      sync.Mutex
	out     io.Writer
	spin    *spinner.Spinner
	lastMsg string
	done    bool
}

// New creates a Progress writing to out. The spinner is used only when out
// is a terminal.
func New(out *os.File) *Progress {
	p := &Progress{out: out}
	if term.IsTerminal(int(out.Fd())) {
		s := spinner.New(spinner.CharSets[14], frameDelay, spinner.WithWriter(out), spinner.WithColor("cyan"))
		p.spin = s
	}
	return p
}

// NewPlain creates a Progress that never animates.
func NewPlain(out io.Writer) *Progress {
	return &Progress{out: out}
}

// Report implements ports.ProgressReporter.
func (p *Progress) Report(ev domain.StageEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return
	}

	switch ev.Stage {
	case domain.StageSucceeded:
		p.finish(successMark, ev.OutputPath)
	case domain.StageFailed:
		p.finish(failureMark, ev.Message)
	default:
		p.update(formatLabel(ev), ev.Position > 0)
	}
}

func (p *Progress) update(msg string, position bool) {
	if msg == p.lastMsg {
		return
	}
	p.lastMsg = msg

	if p.spin == nil {
		// Download positions are only worth showing when animating.
		if msg != "" && !position {
			fmt.Fprintf(p.out, "- %s\n", msg)
		}
		return
	}
	p.spin.Lock()
	p.spin.Suffix = " " + msg
	p.spin.Unlock()
	if !p.spin.Active() {
		p.spin.Start()
	}
}

func (p *Progress) finish(mark, msg string) {
	p.done = true
	if p.spin != nil {
		p.spin.Stop()
	}
	fmt.Fprintf(p.out, "%s %s\n", mark, msg)
}

func formatLabel(ev domain.StageEvent) string {
	label := ev.Label
	if label == "" {
		label = ev.Stage.Label()
	}
	if ev.Position > 0 {
		return fmt.Sprintf("%s (%s)", label, formatPosition(ev.Position))
	}
	return label
}

func formatPosition(d time.Duration) string {
	d = d.Truncate(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
