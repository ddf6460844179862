// Package xlogger builds the structured loggers used by every imgcast
// task. Each background task in the session supervisor gets its own
// component-tagged logger so concurrent task output stays attributable.
package xlogger

import (
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"
)

// Config controls the handler, level and source-path trimming of a
// logger built with New.
type Config struct {
	Level     string
	LogType   string
	AddSource bool

	// SourcePath, when set, is stripped as a prefix from reported
	// source file paths. When empty, New attempts to detect it from
	// the running binary's module path.
	SourcePath string
}

// New builds a *slog.Logger per Config.
func New(conf Config) *slog.Logger {
	if conf.SourcePath == "" {
		conf.SourcePath = detectSourcePath()
	}

	opts := &slog.HandlerOptions{
		AddSource:   conf.AddSource,
		Level:       getLogLevel(conf.Level),
		ReplaceAttr: replaceAttr(conf),
	}

	handler := getHandler(conf.LogType, opts)

	return slog.New(handler)
}

// NewComponent builds a logger the way New does, and tags every record
// it emits with a "component" attribute. The session supervisor gives
// one of these to each background task (discovery, dispatch, receiver,
// disk writer, ...) so interleaved task output stays attributable to
// its source without grepping goroutine stacks.
func NewComponent(component string, conf Config) *slog.Logger {
	return New(conf).With(slog.String("component", component))
}

// detectSourcePath extracts the module path from build info.
func detectSourcePath() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Path == "" {
		return ""
	}

	return info.Main.Path
}

func getLogLevel(logLevel string) slog.Level {
	switch strings.ToLower(logLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getHandler(logType string, opts *slog.HandlerOptions) slog.Handler {
	switch strings.ToLower(logType) {
	case "json":
		return slog.NewJSONHandler(os.Stdout, opts)

	default:
		return slog.NewTextHandler(os.Stdout, opts)
	}
}

func replaceAttr(conf Config) func([]string, slog.Attr) slog.Attr {
	return func(_ []string, attr slog.Attr) slog.Attr {
		if attr.Key == slog.SourceKey {
			if source, ok := attr.Value.Any().(*slog.Source); ok && source != nil {
				sourceFile := fmt.Sprintf("%s:%d", source.File, source.Line)

				if len(conf.SourcePath) > 0 {
					if index := strings.Index(source.File, conf.SourcePath); index >= 0 {
						rest := strings.TrimPrefix(source.File[index+len(conf.SourcePath):], "/")
						sourceFile = fmt.Sprintf("%s:%d", rest, source.Line)
					}
				}

				return slog.String(slog.SourceKey, sourceFile)
			}
		}

		return attr
	}
}
