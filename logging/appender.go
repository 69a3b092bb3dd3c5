package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap/zapcore"
)

// DefaultTimeFormatStr is the default time format string for log appenders.
const DefaultTimeFormatStr = "2006-01-02T15:04:05.000Z0700"

// Appender is an output for log entries. This is a subset of the `zapcore.Core` interface.
type Appender interface {
	// Write submits a structured log entry to the appender for logging.
	Write(zapcore.Entry, []zapcore.Field) error
	// Sync is for signaling that any buffered logs to `Write` should be flushed. E.g: at shutdown.
	Sync() error
}

// ConsoleAppender will create human readable logs.
type ConsoleAppender struct {
	io.Writer
}

// NewStdoutAppender creates a new appender that will write to stdout.
func NewStdoutAppender() ConsoleAppender {
	return ConsoleAppender{os.Stdout}
}

// NewWriterAppender creates a new appender that will write to the input writer.
func NewWriterAppender(writer io.Writer) ConsoleAppender {
	return ConsoleAppender{writer}
}

// Write outputs the log entry to the underlying stream.
func (appender ConsoleAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	toPrint := formatEntry(entry)
	if len(fields) == 0 {
		fmt.Fprintln(appender.Writer, strings.Join(toPrint, "\t"))
		return nil
	}

	// Use zap's json encoder which will encode our slice of fields in-order. As opposed to the
	// random iteration order of a map. Call it with an empty Entry object such that only the fields
	// become "map-ified".
	jsonEncoder := zapcore.NewJSONEncoder(zapcore.EncoderConfig{SkipLineEnding: true})
	buf, err := jsonEncoder.EncodeEntry(zapcore.Entry{}, fields)
	if err != nil {
		// Log what we have and return the error.
		fmt.Fprintln(appender.Writer, strings.Join(toPrint, "\t"))
		return err
	}
	toPrint = append(toPrint, string(buf.Bytes()))
	fmt.Fprintln(appender.Writer, strings.Join(toPrint, "\t"))
	return nil
}

// Sync is a no-op.
func (appender ConsoleAppender) Sync() error {
	return nil
}

func formatEntry(entry zapcore.Entry) []string {
	const maxLength = 10
	toPrint := make([]string, 0, maxLength)
	toPrint = append(toPrint, entry.Time.Format(DefaultTimeFormatStr))

	toPrint = append(toPrint, strings.ToUpper(entry.Level.String()))
	if entry.LoggerName != "" {
		toPrint = append(toPrint, entry.LoggerName)
	}
	if entry.Caller.Defined {
		toPrint = append(toPrint, callerToString(&entry.Caller))
	}
	toPrint = append(toPrint, entry.Message)
	return toPrint
}

// callerToString returns the last directory and file name of the caller, e.g:
// "control/setpoint_generator.go:123".
func callerToString(caller *zapcore.EntryCaller) string {
	dir, file := filepath.Split(caller.File)
	return fmt.Sprintf("%s/%s:%d", filepath.Base(dir), file, caller.Line)
}
