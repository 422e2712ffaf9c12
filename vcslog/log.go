// Package vcslog is a small leveled, structured logger in the call
// shape the teacher's own in-repo "log" package uses throughout
// ethdb and migrations: log.Info("message", "key", value, ...).
package vcslog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level is a log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "?"
	}
}

// Logger writes leveled, structured lines to an underlying writer,
// carrying a fixed set of context key-values attached via With().
type Logger struct {
	mu      *sync.Mutex
	out     io.Writer
	minimum Level
	ctx     []interface{}
}

var root = New(os.Stderr, LevelInfo)

// New constructs a root logger writing to out at the given minimum level.
func New(out io.Writer, minimum Level) *Logger {
	return &Logger{mu: &sync.Mutex{}, out: out, minimum: minimum}
}

// Root returns the process-wide default logger. Components should
// prefer a repo-scoped logger via New/With rather than this, but it
// keeps call sites uncluttered where a repository handle isn't handy.
func Root() *Logger { return root }

// With returns a child logger that prepends name/component context to
// every line, mirroring log.New("database", "in-memory") in the
// teacher's ethdb/memory_database.go.
func (l *Logger) With(keyvals ...interface{}) *Logger {
	child := &Logger{mu: l.mu, out: l.out, minimum: l.minimum}
	child.ctx = append(append([]interface{}{}, l.ctx...), keyvals...)
	return child
}

func (l *Logger) log(level Level, msg string, keyvals ...interface{}) {
	if level < l.minimum {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "%s [%s] %s", time.Now().UTC().Format(time.RFC3339), level, msg)
	all := append(append([]interface{}{}, l.ctx...), keyvals...)
	for i := 0; i+1 < len(all); i += 2 {
		fmt.Fprintf(l.out, " %v=%v", all[i], all[i+1])
	}
	fmt.Fprintln(l.out)
}

func (l *Logger) Debug(msg string, keyvals ...interface{}) { l.log(LevelDebug, msg, keyvals...) }
func (l *Logger) Info(msg string, keyvals ...interface{})  { l.log(LevelInfo, msg, keyvals...) }
func (l *Logger) Warn(msg string, keyvals ...interface{})  { l.log(LevelWarn, msg, keyvals...) }
func (l *Logger) Error(msg string, keyvals ...interface{}) { l.log(LevelError, msg, keyvals...) }

// Package-level convenience wrapping Root(), matching the teacher's
// unqualified log.Info(...) call sites.
func Debug(msg string, keyvals ...interface{}) { root.Debug(msg, keyvals...) }
func Info(msg string, keyvals ...interface{})  { root.Info(msg, keyvals...) }
func Warn(msg string, keyvals ...interface{})  { root.Warn(msg, keyvals...) }
func Error(msg string, keyvals ...interface{}) { root.Error(msg, keyvals...) }
