package tlogger

import (
	"io"
	"os"
	"runtime/debug"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Log is the default logger for apps
var Log log.Logger

var hlog log.Logger

// ApplyLogLevel applies min logging level, only the first call has an effect
var ApplyLogLevel func(string)

func init() {
	SetOutput(os.Stdout)
}

// SetOutput rebuilds the loggers on top of w and re-arms ApplyLogLevel.
// Tests use it to capture or silence output.
func SetOutput(w io.Writer) {
	base := log.NewLogfmtLogger(log.NewSyncWriter(w))
	// loggers always sit behind a level filter so the caller depth never changes
	filtered(base, level.AllowAll())

	ApplyLogLevel = func(lvl string) {
		var opt level.Option
		switch lvl {
		case "debug":
			opt = level.AllowDebug()
		case "warn":
			opt = level.AllowWarn()
		case "error":
			opt = level.AllowError()
		case "all":
			opt = level.AllowAll()
		default:
			opt = level.AllowInfo()
		}
		filtered(base, opt)
		ApplyLogLevel = func(string) {}
	}
}

func filtered(base log.Logger, opt level.Option) {
	hlog = level.NewFilter(log.With(base, "ts", log.DefaultTimestampUTC, "caller", log.Caller(6)), opt)
	Log = level.NewFilter(log.With(base, "ts", log.DefaultTimestampUTC, "caller", log.Caller(5)), opt)
}

// Verbosity maps a -v counter to a level name
func Verbosity(v int) string {
	switch v {
	case 0:
		return "info"
	case 1:
		return "debug"
	default:
		return "all"
	}
}

// Debug add a log entry w/ Debug level
func Debug(keyvals ...interface{}) {
	level.Debug(hlog).Log(keyvals...)
}

// Info add a log entry w/ Info level
func Info(keyvals ...interface{}) {
	level.Info(hlog).Log(keyvals...)
}

// Warn add a log entry w/ Warn level
func Warn(keyvals ...interface{}) {
	level.Warn(hlog).Log(keyvals...)
}

// Error add a log entry w/ Error level
func Error(keyvals ...interface{}) {
	level.Error(hlog).Log(keyvals...)
}

// Fatal add a log entry w/ Error level and exits
func Fatal(keyvals ...interface{}) {
	debug.PrintStack()
	level.Error(hlog).Log(keyvals...)
	os.Exit(1)
}

// FatalIf prints a fatal Error level and exits if err != nil
func FatalIf(err error) {
	if err == nil {
		return
	}
	level.Error(hlog).Log("err", err)
	os.Exit(1)
}
