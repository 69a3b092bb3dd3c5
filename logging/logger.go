package logging

import "context"

// Logger is the logging interface used throughout the swerve packages. The "C" prefixed methods
// additionally log at debug when the context was enabled with `EnableDebugMode`.
type Logger interface {
	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	CDebug(ctx context.Context, args ...interface{})
	CDebugf(ctx context.Context, template string, args ...interface{})
	CDebugw(ctx context.Context, msg string, keysAndValues ...interface{})

	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})

	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})

	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	Fatal(args ...interface{})
	Fatalf(template string, args ...interface{})
	Fatalw(msg string, keysAndValues ...interface{})

	// Sublogger returns a child logger named "<parent>.<subname>" sharing the parent's appenders.
	Sublogger(subname string) Logger
	AddAppender(appender Appender)
	SetLevel(level Level)
	GetLevel() Level
	Sync() error
}
