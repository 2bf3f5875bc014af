// Package logger holds the process-wide structured logger.
//
// Logger starts as a no-op so library code can log unconditionally; the CLI
// calls Initialize once flags are parsed. Logs go to stderr because stdout
// carries command results (templates, issue lists, query rows).
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Logger is the global logger instance.
	Logger *zap.SugaredLogger
	// JSONOutput records whether Initialize selected the JSON encoder.
	JSONOutput bool
)

func init() {
	Logger = zap.NewNop().Sugar()
}

// Verbosity levels for the repeatable -v flag.
const (
	VerbosityUser  = 0 // warnings and errors only
	VerbosityInfo  = 1 // -v: progress and step timings
	VerbosityDebug = 2 // -vv: per-file decisions, resolution traces
)

// VerbosityToLevel maps a -v count to a zap level.
func VerbosityToLevel(verbosity int) zapcore.Level {
	switch {
	case verbosity <= VerbosityUser:
		return zapcore.WarnLevel
	case verbosity == VerbosityInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// Initialize sets up the global logger.
//
// jsonOutput selects zap's production JSON encoder; otherwise a console
// encoder without caller/stack noise is used.
func Initialize(jsonOutput bool, verbosity int) error {
	JSONOutput = jsonOutput
	level := VerbosityToLevel(verbosity)

	if jsonOutput {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		cfg.OutputPaths = []string{"stderr"}
		cfg.ErrorOutputPaths = []string{"stderr"}
		zl, err := cfg.Build()
		if err != nil {
			return err
		}
		Logger = zl.Sugar()
		return nil
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.CallerKey = ""
	encCfg.StacktraceKey = ""
	encCfg.TimeKey = ""

	Logger = zap.New(zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(os.Stderr),
		level,
	)).Sugar()
	return nil
}

// Named returns a child of the global logger, or l itself when non-nil.
//
// Packages that take an optional logger use this so a nil field falls back
// to the process-wide logger.
func Named(l *zap.SugaredLogger, name string) *zap.SugaredLogger {
	if l != nil {
		return l
	}
	return Logger.Named(name)
}

// Cleanup flushes any buffered log entries.
func Cleanup() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}
