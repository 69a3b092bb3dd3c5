package logging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type (
	impl struct {
		name  string
		level AtomicLevel
		inUTC bool

		appenders []Appender
	}

	// LogEntry embeds a zapcore Entry and slice of Fields.
	LogEntry struct {
		zapcore.Entry
		fields []zapcore.Field
	}
)

func (imp *impl) AddAppender(appender Appender) {
	imp.appenders = append(imp.appenders, appender)
}

func (imp *impl) SetLevel(level Level) {
	imp.level.Set(level)
}

func (imp *impl) GetLevel() Level {
	return imp.level.Get()
}

// Sublogger starts at the parent's current level. Changing either level later does not affect the
// other.
func (imp *impl) Sublogger(subname string) Logger {
	name := subname
	if imp.name != "" {
		name = imp.name + "." + subname
	}
	return &impl{
		name:      name,
		level:     NewAtomicLevelAt(imp.level.Get()),
		inUTC:     imp.inUTC,
		appenders: imp.appenders,
	}
}

func (imp *impl) Sync() error {
	var err error
	for _, appender := range imp.appenders {
		err = multierr.Append(err, appender.Sync())
	}
	return err
}

func (imp *impl) enabled(level Level) bool {
	return level >= imp.level.Get()
}

// emit builds an entry and hands it to every appender. It must be called directly by one of the
// public log methods for the caller lookup to land on the user's frame.
func (imp *impl) emit(level Level, msg string, keysAndValues []interface{}) {
	entry := &LogEntry{Entry: zapcore.Entry{
		Level:      level.AsZap(),
		Time:       time.Now(),
		LoggerName: imp.name,
		Message:    msg,
		Caller:     getCaller(),
	}}
	if imp.inUTC {
		entry.Time = entry.Time.UTC()
	}
	entry.fields = pairFields(keysAndValues)

	for _, appender := range imp.appenders {
		if err := appender.Write(entry.Entry, entry.fields); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

// pairFields turns alternating keys and values into fields. Values are json serialized with only
// public fields included. A trailing key without a value is kept with an error as its value.
func pairFields(keysAndValues []interface{}) []zapcore.Field {
	if len(keysAndValues) == 0 {
		return nil
	}
	fields := make([]zapcore.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		if i+1 < len(keysAndValues) {
			fields = append(fields, zap.Any(key, keysAndValues[i+1]))
		} else {
			fields = append(fields, zap.Any(key, errors.New("unpaired log key")))
		}
	}
	return fields
}

func (imp *impl) Debug(args ...interface{}) {
	if imp.enabled(DEBUG) {
		imp.emit(DEBUG, fmt.Sprint(args...), nil)
	}
}

func (imp *impl) Debugf(template string, args ...interface{}) {
	if imp.enabled(DEBUG) {
		imp.emit(DEBUG, fmt.Sprintf(template, args...), nil)
	}
}

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	if imp.enabled(DEBUG) {
		imp.emit(DEBUG, msg, keysAndValues)
	}
}

func (imp *impl) CDebug(ctx context.Context, args ...interface{}) {
	if imp.enabled(DEBUG) || IsDebugMode(ctx) {
		imp.emit(DEBUG, fmt.Sprint(args...), nil)
	}
}

func (imp *impl) CDebugf(ctx context.Context, template string, args ...interface{}) {
	if imp.enabled(DEBUG) || IsDebugMode(ctx) {
		imp.emit(DEBUG, fmt.Sprintf(template, args...), nil)
	}
}

func (imp *impl) CDebugw(ctx context.Context, msg string, keysAndValues ...interface{}) {
	if imp.enabled(DEBUG) || IsDebugMode(ctx) {
		imp.emit(DEBUG, msg, keysAndValues)
	}
}

func (imp *impl) Info(args ...interface{}) {
	if imp.enabled(INFO) {
		imp.emit(INFO, fmt.Sprint(args...), nil)
	}
}

func (imp *impl) Infof(template string, args ...interface{}) {
	if imp.enabled(INFO) {
		imp.emit(INFO, fmt.Sprintf(template, args...), nil)
	}
}

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	if imp.enabled(INFO) {
		imp.emit(INFO, msg, keysAndValues)
	}
}

func (imp *impl) Warn(args ...interface{}) {
	if imp.enabled(WARN) {
		imp.emit(WARN, fmt.Sprint(args...), nil)
	}
}

func (imp *impl) Warnf(template string, args ...interface{}) {
	if imp.enabled(WARN) {
		imp.emit(WARN, fmt.Sprintf(template, args...), nil)
	}
}

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	if imp.enabled(WARN) {
		imp.emit(WARN, msg, keysAndValues)
	}
}

func (imp *impl) Error(args ...interface{}) {
	if imp.enabled(ERROR) {
		imp.emit(ERROR, fmt.Sprint(args...), nil)
	}
}

func (imp *impl) Errorf(template string, args ...interface{}) {
	if imp.enabled(ERROR) {
		imp.emit(ERROR, fmt.Sprintf(template, args...), nil)
	}
}

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	if imp.enabled(ERROR) {
		imp.emit(ERROR, msg, keysAndValues)
	}
}

// The Fatal methods log at ERROR regardless of level, then exit the process.
func (imp *impl) Fatal(args ...interface{}) {
	imp.emit(ERROR, fmt.Sprint(args...), nil)
	os.Exit(1)
}

func (imp *impl) Fatalf(template string, args ...interface{}) {
	imp.emit(ERROR, fmt.Sprintf(template, args...), nil)
	os.Exit(1)
}

func (imp *impl) Fatalw(msg string, keysAndValues ...interface{}) {
	imp.emit(ERROR, msg, keysAndValues)
	os.Exit(1)
}

// getCaller <- emit <- Info/Debug/... <- caller.
func getCaller() zapcore.EntryCaller {
	const skipToLogCaller = 3
	var caller zapcore.EntryCaller
	pc, file, line, ok := runtime.Caller(skipToLogCaller)
	if !ok {
		return caller
	}
	caller = zapcore.NewEntryCaller(pc, file, line, true)
	if fn := runtime.FuncForPC(pc); fn != nil {
		caller.Function = fn.Name()
	}
	return caller
}
