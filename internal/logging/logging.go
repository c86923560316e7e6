// Package logging provides the process-wide diagnostic channel used
// throughout vss2git. It follows the Control/logit/croak/logEnable idiom
// of the upstream history-surgery tools this codebase is descended from:
// a single bitmask selects which log classes are active, logit writes a
// timestamped line to the active classes, and croak records a fatal
// diagnostic and marks the run aborted without killing the process outright
// (the caller is expected to check Aborted() at stage boundaries).
//
// The main point of this design is to make adding and removing log classes
// simple enough that it can be done ad-hoc: add a constant to the iota
// block and an entry to classNames, then use the constant in Logit/Enabled.
package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Log classes. Maps onto the --verbose values in spec.md section 6.
const (
	ClassShout   uint = 1 << iota // errors and urgent messages
	ClassWarn                     // MappingWarning / ContentWarning, probably not a bug
	ClassBaton                    // progress-meter chatter
	ClassDump                    // raw revision/ProjectTree dumps (--verbose=dump)
	ClassDumpAll                 // dumps plus filtered-out paths (--verbose=dump_all)
	ClassRevs                     // per-revision trace (--verbose=revs)
	ClassCommits                  // per-commit trace (--verbose=commits)
	ClassFormat                   // formatting spec resolution (--verbose=format)
	ClassFormatVerbose            // formatting spec resolution with before/after diffs
	ClassMapping                  // path->ref mapping decisions
	ClassBranch                   // branch state machine / merge detection
)

var classNames = map[string]uint{
	"shout":           ClassShout,
	"warn":            ClassWarn,
	"baton":           ClassBaton,
	"dump":            ClassDump,
	"dump_all":        ClassDumpAll,
	"revs":            ClassRevs,
	"commits":         ClassCommits,
	"format":          ClassFormat,
	"format-verbose":  ClassFormatVerbose,
	"all": ClassShout | ClassWarn | ClassBaton | ClassDump | ClassRevs |
		ClassCommits | ClassFormat | ClassMapping | ClassBranch,
}

// ParseClasses turns the comma-separated --verbose values into a bitmask.
func ParseClasses(values []string) uint {
	var mask uint
	for _, v := range values {
		for _, name := range strings.Split(v, ",") {
			if bit, ok := classNames[strings.TrimSpace(name)]; ok {
				mask |= bit
			}
		}
	}
	return mask
}

// Control is the process-wide logging/abort context, analogous to the
// upstream tools' Control struct but scoped to what this converter needs.
type Control struct {
	mask    uint
	mu      sync.Mutex
	aborted bool
	relax   bool // if true, croak() does not set aborted (see Relax)
	logger  *logrus.Logger
}

// New builds a Control with the given class mask active.
func New(mask uint) *Control {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &Control{mask: mask, logger: logger}
}

// Enabled reports whether any bit of class is active.
func (c *Control) Enabled(class uint) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mask&class != 0
}

// Logit writes msg, with structured fields, to the given class if active.
func (c *Control) Logit(class uint, fields logrus.Fields, msg string, args ...interface{}) {
	if !c.Enabled(class) {
		return
	}
	entry := c.logger.WithFields(fields)
	entry.Infof(msg, args...)
}

// Croak records a fatal diagnostic and marks the run aborted, unless the
// Control was put in relaxed mode by Relax.
func (c *Control) Croak(fields logrus.Fields, msg string, args ...interface{}) {
	c.logger.WithFields(fields).Errorf(msg, args...)
	c.mu.Lock()
	if !c.relax {
		c.aborted = true
	}
	c.mu.Unlock()
}

// Relax puts the Control in relaxed mode: Croak logs but does not abort.
func (c *Control) Relax() {
	c.mu.Lock()
	c.relax = true
	c.mu.Unlock()
}

// Aborted reports whether a fatal diagnostic has been recorded.
func (c *Control) Aborted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted
}

// Kind identifies which branch of the spec.md section 7 error taxonomy an
// Exception belongs to.
type Kind string

const (
	KindConfig  Kind = "ConfigError"
	KindMapping Kind = "MappingWarning"
	KindContent Kind = "ContentWarning"
	KindParser  Kind = "ParserError"
	KindHasher  Kind = "HasherError"
	KindGit     Kind = "GitWriteError"
)

// Exception is the typed panic value used to unwind out of a pipeline stage
// on a fatal condition, mirroring the upstream exception/throw/catch idiom.
type Exception struct {
	Kind    Kind
	Message string
}

func (e *Exception) Error() string { return string(e.Kind) + ": " + e.Message }

// Throw panics with a typed Exception. Callers at a stage boundary recover
// and convert it into a process exit code per spec.md section 7.
func Throw(kind Kind, format string, args ...interface{}) {
	panic(&Exception{Kind: kind, Message: fmt.Sprintf(format, args...)})
}

// Catch recovers a panic started by Throw (or a plain error/string panic)
// into an error value. It does not recover non-Exception panics that look
// like programming bugs (e.g. nil dereference) — those still crash loudly.
func Catch(recovered interface{}) error {
	switch v := recovered.(type) {
	case nil:
		return nil
	case *Exception:
		return v
	case error:
		return v
	default:
		panic(recovered)
	}
}
