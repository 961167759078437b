// Package zap adapts a *zap.Logger to contentcache.Logger.
package zap

import (
	"fmt"
	"sort"

	"github.com/unkn0wn-root/contentcache"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ contentcache.Logger = Logger{}

type Logger struct{ L *zap.Logger }

func (z Logger) Debug(msg string, f contentcache.Fields) { z.L.Debug(msg, fields(f)...) }
func (z Logger) Info(msg string, f contentcache.Fields)  { z.L.Info(msg, fields(f)...) }
func (z Logger) Warn(msg string, f contentcache.Fields)  { z.L.Warn(msg, fields(f)...) }
func (z Logger) Error(msg string, f contentcache.Fields) { z.L.Error(msg, fields(f)...) }

// New builds a production zap logger at the given level. format is "json" or
// "console".
func New(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	switch format {
	case "", "json":
	case "console":
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("log format %q: want json or console", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = lvl > zapcore.DebugLevel
	return cfg.Build()
}

func fields(f contentcache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		if err, ok := f[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
