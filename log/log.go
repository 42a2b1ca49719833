// Package log holds the process-wide leveled loggers. Call Initialize once
// at startup and defer Close.
package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

var (
	WarningLog *log.Logger
	InfoLog    *log.Logger
	ErrorLog   *log.Logger
	DebugLog   *log.Logger
)

var globalLogFile *os.File

func init() {
	// usable before Initialize, e.g. from tests
	setOutput(os.Stderr, false)
}

// Config selects where logs go.
type Config struct {
	// File is a path to append to; empty means stderr.
	File  string `json:"file"`
	Debug bool   `json:"debug"`
}

func debugFromEnv() bool {
	v := os.Getenv("LFCORE_DEBUG")
	return v == "true" || v == "1"
}

// Initialize sets up the loggers. If the file cannot be opened it falls
// back to stderr and says so.
func Initialize(cfg Config) {
	debug := cfg.Debug || debugFromEnv()
	if cfg.File == "" {
		setOutput(os.Stderr, debug)
		return
	}

	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		setOutput(os.Stderr, debug)
		fmt.Fprintf(os.Stderr, "Warning: using stderr for logging: %v\n", err)
		return
	}
	setOutput(f, debug)
	globalLogFile = f
}

func setOutput(w io.Writer, debug bool) {
	flags := log.Ldate | log.Ltime | log.Lshortfile
	InfoLog = log.New(w, "INFO: ", flags)
	WarningLog = log.New(w, "WARNING: ", flags)
	ErrorLog = log.New(w, "ERROR: ", flags)
	if debug {
		DebugLog = log.New(w, "DEBUG: ", flags)
	} else {
		DebugLog = log.New(io.Discard, "", 0)
	}
}

// Close flushes and closes the log file, if any.
func Close() {
	if globalLogFile == nil {
		return
	}
	_ = globalLogFile.Sync()
	_ = globalLogFile.Close()
	globalLogFile = nil
}

// Every is used to log at most once every timeout duration.
type Every struct {
	mu      sync.Mutex
	timeout time.Duration
	last    time.Time
}

func NewEvery(timeout time.Duration) *Every {
	return &Every{timeout: timeout}
}

// ShouldLog returns true if the timeout has passed since the last time
// it returned true.
func (e *Every) ShouldLog() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := time.Now()
	if e.last.IsZero() || now.Sub(e.last) >= e.timeout {
		e.last = now
		return true
	}
	return false
}
