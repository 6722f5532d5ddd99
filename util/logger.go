package util

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	logMu     sync.Mutex
	logLevel            = log.InfoLevel
	logOutput io.Writer = os.Stderr
)

// SetLogLevel applies a level name ("debug", "info", ...) to loggers
// created afterwards. Unknown names keep the current level.
func SetLogLevel(name string) error {
	level, err := log.ParseLevel(name)
	if err != nil {
		return err
	}
	logMu.Lock()
	logLevel = level
	logMu.Unlock()
	log.SetLevel(level)
	return nil
}

// SetLogOutput redirects loggers created afterwards.
func SetLogOutput(w io.Writer) {
	logMu.Lock()
	logOutput = w
	logMu.Unlock()
	log.SetOutput(w)
}

// NewLogger returns a structured logger for one component, e.g. "Inbox".
func NewLogger(prefix string) *log.Logger {
	logMu.Lock()
	defer logMu.Unlock()
	return log.NewWithOptions(logOutput, log.Options{
		Prefix:          prefix,
		Level:           logLevel,
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
	})
}
