// Package joblog provides the per-job file+stdout logger required by
// spec.md §6: "a well-known log directory receives one file per job (run
// interactively writes also to stdout)". Generalized from the teacher's
// internal/debug package (env-gated verbosity, Logf/Printf/PrintNormal
// helpers) into a per-job tee, matching original_source's
// logging.basicConfig(handlers=[FileHandler(...), StreamHandler(stdout)]).
package joblog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Logger writes to a job-specific log file and, when Interactive is true,
// also to stdout.
type Logger struct {
	file        *os.File
	interactive bool
	jobName     string
}

// Open creates (or appends to) <logDir>/<jobName>.log. interactive controls
// whether lines are also echoed to stdout; callers typically set this from
// an isatty check or a --quiet flag, matching the teacher's debug.IsQuiet.
func Open(logDir, jobName string, interactive bool) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log dir %s: %w", logDir, err)
	}
	path := filepath.Join(logDir, jobName+".log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) // #nosec G304 - fixed job-derived path under operator-configured dir
	if err != nil {
		return nil, fmt.Errorf("opening log file %s: %w", path, err)
	}
	return &Logger{file: f, interactive: interactive, jobName: jobName}, nil
}

// Close closes the underlying log file.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Infof writes a timestamped info line to the log file and, if interactive,
// to stdout.
func (l *Logger) Infof(format string, args ...any) {
	l.writeLine("INFO", format, args...)
}

// Warnf writes a timestamped warning line.
func (l *Logger) Warnf(format string, args ...any) {
	l.writeLine("WARN", format, args...)
}

// Errorf writes a timestamped error line.
func (l *Logger) Errorf(format string, args ...any) {
	l.writeLine("ERROR", format, args...)
}

func (l *Logger) writeLine(level, format string, args ...any) {
	line := fmt.Sprintf("%s - %s - %s - %s\n",
		time.Now().UTC().Format(time.RFC3339), l.jobName, level, fmt.Sprintf(format, args...))

	var writers []io.Writer
	if l.file != nil {
		writers = append(writers, l.file)
	}
	if l.interactive {
		writers = append(writers, os.Stdout)
	}
	for _, w := range writers {
		_, _ = io.WriteString(w, line)
	}
}
