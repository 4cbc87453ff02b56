// Package monitoring holds the process-wide diagnostic logger. It is backed
// by zap; Logf stays as a plain printf hook so tests can redirect or mute it.
package monitoring

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var sugar = zap.NewNop().Sugar()

// hooked is set while a SetLogger hook is installed; every level then goes
// to Logf instead of zap.
var hooked bool

// Logf is the package-level diagnostic logger. It defaults to the zap logger's
// Infof but may be replaced by SetLogger. Tests or production code can
// redirect or mute it.
var Logf func(format string, v ...interface{}) = func(format string, v ...interface{}) {
	sugar.Infof(format, v...)
}

// Init builds the zap logger. debug selects the development config, which
// also enables Debugf output.
func Init(debug bool) error {
	var (
		l   *zap.Logger
		err error
	)
	if debug {
		l, err = zap.NewDevelopment(zap.AddCallerSkip(2))
	} else {
		l, err = zap.NewProduction(zap.AddCallerSkip(2))
	}
	if err != nil {
		return fmt.Errorf("can't initialize zap logger: %w", err)
	}
	SetZapLogger(l)
	return nil
}

// SetZapLogger installs l as the backing logger and points Logf at it.
func SetZapLogger(l *zap.Logger) {
	sugar = l.Sugar()
	hooked = false
	Logf = func(format string, v ...interface{}) {
		sugar.Infof(format, v...)
	}
}

// SetLogger replaces the package logger for every level. Passing nil will
// set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	hooked = true
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Sync flushes any buffered log entries.
func Sync() {
	_ = sugar.Sync()
}

func logAt(level zapcore.Level, format string, v ...interface{}) {
	if hooked {
		Logf(format, v...)
		return
	}
	sugar.Logf(level, format, v...)
}

func Debugf(format string, v ...interface{}) { logAt(zapcore.DebugLevel, format, v...) }

func Infof(format string, v ...interface{}) { Logf(format, v...) }

func Warnf(format string, v ...interface{}) { logAt(zapcore.WarnLevel, format, v...) }

func Errorf(format string, v ...interface{}) { logAt(zapcore.ErrorLevel, format, v...) }
