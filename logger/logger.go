// Package logger provides logging for the patient registry with a console
// backend, a file backend and a small in-memory buffer of recent entries.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/medreg/patient-registry/config"
	"github.com/op/go-logging"
)

const (
	maxLogBufferSize = 2048                  // Maximum log entries kept in memory
	logFileName      = "patient-registry.log" // Log file name
	timeFormat       = "2006/01/02 15:04:05"  // Log timestamp format
	moduleName       = "registry"
)

type entry struct {
	time  string
	level logging.Level
	log   string
}

var (
	logger  *logging.Logger
	logFile *os.File

	mu        sync.Mutex
	logBuffer []entry
)

// InitLogger initializes the console and file backends.
// Console logging uses the given level, file logging always uses DEBUG.
func InitLogger(level logging.Level) {
	newLogger := logging.MustGetLogger(moduleName)
	backends := make([]logging.Backend, 0, 2)

	if consoleBackend := initDefaultBackend(); consoleBackend != nil {
		leveledBackend := logging.AddModuleLevel(consoleBackend)
		leveledBackend.SetLevel(level, moduleName)
		backends = append(backends, leveledBackend)
	}

	if fileBackend := initFileBackend(); fileBackend != nil {
		leveledBackend := logging.AddModuleLevel(fileBackend)
		leveledBackend.SetLevel(logging.DEBUG, moduleName)
		backends = append(backends, leveledBackend)
	}

	newLogger.SetBackend(logging.MultiLogger(backends...))
	logger = newLogger
}

// ParseLevel maps a config log level onto a go-logging level.
func ParseLevel(level config.LogLevel) (logging.Level, error) {
	switch level {
	case config.Debug:
		return logging.DEBUG, nil
	case config.Info:
		return logging.INFO, nil
	case config.Notice:
		return logging.NOTICE, nil
	case config.Warn:
		return logging.WARNING, nil
	case config.Error:
		return logging.ERROR, nil
	}
	return logging.INFO, fmt.Errorf("unknown log level: %s", level)
}

// initDefaultBackend creates the console backend. Containers have no syslog,
// so stderr is used unless PR_SYSLOG=true.
func initDefaultBackend() logging.Backend {
	var backend logging.Backend
	includeTime := true

	if runtime.GOOS != "windows" && os.Getenv("PR_SYSLOG") == "true" {
		if syslogBackend, err := logging.NewSyslogBackend(""); err != nil {
			fmt.Fprintf(os.Stderr, "syslog backend disabled: %v\n", err)
		} else {
			backend = syslogBackend
			includeTime = false
		}
	}
	if backend == nil {
		backend = logging.NewLogBackend(os.Stderr, "", 0)
	}

	return logging.NewBackendFormatter(backend, newFormatter(includeTime))
}

// initFileBackend creates the file backend, truncating any previous log.
func initFileBackend() logging.Backend {
	logDir := config.GetLogFolder()
	if err := os.MkdirAll(logDir, 0o750); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log folder %s: %v\n", logDir, err)
		return nil
	}

	logPath := filepath.Join(logDir, logFileName)
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o660)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file %s: %v\n", logPath, err)
		return nil
	}

	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = file

	backend := logging.NewLogBackend(file, "", 0)
	return logging.NewBackendFormatter(backend, newFormatter(true))
}

func newFormatter(withTime bool) logging.Formatter {
	format := `%{level} - %{message}`
	if withTime {
		format = `%{time:` + timeFormat + `} %{level} - %{message}`
	}
	return logging.MustStringFormatter(format)
}

// get returns the active logger. Packages used before InitLogger (tests,
// CLI subcommands) get a stderr logger at WARNING.
func get() *logging.Logger {
	if logger == nil {
		l := logging.MustGetLogger(moduleName)
		backend := logging.AddModuleLevel(
			logging.NewBackendFormatter(logging.NewLogBackend(os.Stderr, "", 0), newFormatter(true)))
		backend.SetLevel(logging.WARNING, moduleName)
		l.SetBackend(backend)
		logger = l
	}
	return logger
}

// CloseLogger closes the log file.
func CloseLogger() {
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

func Debug(args ...any) {
	get().Debug(args...)
	addToBuffer(logging.DEBUG, fmt.Sprint(args...))
}

func Debugf(format string, args ...any) {
	get().Debugf(format, args...)
	addToBuffer(logging.DEBUG, fmt.Sprintf(format, args...))
}

func Info(args ...any) {
	get().Info(args...)
	addToBuffer(logging.INFO, fmt.Sprint(args...))
}

func Infof(format string, args ...any) {
	get().Infof(format, args...)
	addToBuffer(logging.INFO, fmt.Sprintf(format, args...))
}

func Notice(args ...any) {
	get().Notice(args...)
	addToBuffer(logging.NOTICE, fmt.Sprint(args...))
}

func Noticef(format string, args ...any) {
	get().Noticef(format, args...)
	addToBuffer(logging.NOTICE, fmt.Sprintf(format, args...))
}

func Warning(args ...any) {
	get().Warning(args...)
	addToBuffer(logging.WARNING, fmt.Sprint(args...))
}

func Warningf(format string, args ...any) {
	get().Warningf(format, args...)
	addToBuffer(logging.WARNING, fmt.Sprintf(format, args...))
}

func Error(args ...any) {
	get().Error(args...)
	addToBuffer(logging.ERROR, fmt.Sprint(args...))
}

func Errorf(format string, args ...any) {
	get().Errorf(format, args...)
	addToBuffer(logging.ERROR, fmt.Sprintf(format, args...))
}

func addToBuffer(level logging.Level, newLog string) {
	mu.Lock()
	defer mu.Unlock()
	if len(logBuffer) >= maxLogBufferSize {
		logBuffer = logBuffer[1:]
	}
	logBuffer = append(logBuffer, entry{
		time:  time.Now().Format(timeFormat),
		level: level,
		log:   newLog,
	})
}

// GetLogs returns up to c of the most recent entries at or above the given severity.
func GetLogs(c int, level string) []string {
	logLevel, err := logging.LogLevel(level)
	if err != nil {
		logLevel = logging.DEBUG
	}

	mu.Lock()
	defer mu.Unlock()
	var output []string
	for i := len(logBuffer) - 1; i >= 0 && len(output) < c; i-- {
		if logBuffer[i].level <= logLevel {
			output = append(output, fmt.Sprintf("%s %s - %s", logBuffer[i].time, logBuffer[i].level, logBuffer[i].log))
		}
	}
	return output
}
