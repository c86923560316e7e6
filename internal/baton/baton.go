// Package baton ships progress indications to stderr, the way
// cutter/repocutter.go's Baton does for repocutter and the way
// reposurgeon's Control.baton does for the interactive tool. Here it backs
// the --progress CLI flag: one twirl per revision consumed, a summary line
// at the end.
package baton

import (
	"fmt"
	"os"
	"time"

	terminal "golang.org/x/crypto/ssh/terminal"
	"github.com/xo/terminfo"
)

// Baton is a progress spinner for long-running, mostly-sequential work.
type Baton struct {
	stream   *os.File
	count    int
	prompt   string
	interval time.Duration
	started  time.Time
	lastTwirl time.Time
	quiet    bool
	width    int
}

// New creates a Baton. interval is the minimum spacing between twirls
// (--progress[=<seconds>]); a zero interval twirls on every call.
func New(prompt string, interval time.Duration, quiet bool) *Baton {
	b := &Baton{
		stream:   os.Stderr,
		prompt:   prompt,
		interval: interval,
		started:  time.Now(),
		quiet:    quiet,
		width:    screenWidth(),
	}
	if !b.quiet {
		fmt.Fprintf(b.stream, "%s...", b.prompt)
		if terminal.IsTerminal(int(b.stream.Fd())) {
			b.stream.WriteString(" \b")
		}
	}
	return b
}

// screenWidth asks terminfo for the terminal width, falling back to 80
// columns when stdout isn't a terminal (batch/CI runs).
func screenWidth() int {
	if !terminal.IsTerminal(1) {
		return 80
	}
	ti, err := terminfo.LoadFromEnv()
	if err != nil {
		return 80
	}
	if cols := ti.Num(terminfo.Columns); cols > 0 {
		return cols
	}
	return 80
}

// Twirl advances the spinner, subject to the configured interval. legend,
// if non-empty, replaces the default rotating character (e.g. a revision
// number).
func (b *Baton) Twirl(legend string) {
	b.count++
	if b.quiet {
		return
	}
	if b.interval > 0 && time.Since(b.lastTwirl) < b.interval {
		return
	}
	b.lastTwirl = time.Now()
	if !terminal.IsTerminal(int(b.stream.Fd())) {
		return
	}
	if legend != "" {
		b.stream.WriteString(legend)
	} else {
		b.stream.Write([]byte{"-/|\\"[b.count%4]})
		b.stream.WriteString("\b")
	}
}

// End prints a closing summary line.
func (b *Baton) End(msg string) {
	if b.quiet {
		return
	}
	fmt.Fprintf(b.stream, "...(%s) %s.\n", time.Since(b.started).Round(time.Millisecond), msg)
}
