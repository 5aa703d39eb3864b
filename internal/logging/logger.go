package logging

import (
	"encoding/hex"
	"fmt"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/muurk/playerclient/pkg/wire"
)

// LogLevelEnvVar selects the level when none is passed explicitly. Unset
// means silent.
const LogLevelEnvVar = "PLAYERCLIENT_LOG_LEVEL"

// maxDump bounds hex and ascii dumps
const maxDump = 256

var global atomic.Pointer[zap.Logger]

// Initialize replaces the global logger with one built by New.
func Initialize(level string) error {
	l, err := New(level)
	if err != nil {
		return err
	}
	global.Store(l)
	return nil
}

// New builds a console logger writing to stderr. An empty level falls back
// to LogLevelEnvVar; if that is empty too the logger is a no-op.
func New(level string) (*zap.Logger, error) {
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}
	if level == "" {
		return zap.NewNop(), nil
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeCaller = zapcore.ShortCallerEncoder

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(lvl),
		Encoding:         "console",
		EncoderConfig:    enc,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return l, nil
}

// GetLogger returns the global logger, a no-op until Initialize or SetLogger.
func GetLogger() *zap.Logger {
	if l := global.Load(); l != nil {
		return l
	}
	return zap.NewNop()
}

// SetLogger replaces the global logger. Nil restores silent mode.
func SetLogger(l *zap.Logger) {
	global.Store(l)
}

// Info logs on the global logger.
func Info(msg string, fields ...zap.Field) { GetLogger().Info(msg, fields...) }

// Warn logs on the global logger.
func Warn(msg string, fields ...zap.Field) { GetLogger().Warn(msg, fields...) }

// LogConnection logs a connection lifecycle event.
func LogConnection(l *zap.Logger, addr string, event string) {
	l.Info("Connection event",
		zap.String("server_addr", addr),
		zap.String("event", event),
	)
}

// FrameFields returns the structured fields describing one frame header.
func FrameFields(h wire.Header) []zap.Field {
	return []zap.Field{
		zap.Stringer("type", h.Type),
		zap.Uint16("device", h.Device),
		zap.Uint16("index", h.Index),
		zap.Int32("size", h.Size),
	}
}

// LogFrame logs one frame at debug level. Dumps are only built when debug
// output is enabled.
func LogFrame(l *zap.Logger, direction string, h wire.Header, payload []byte) {
	ce := l.Check(zapcore.DebugLevel, "Frame")
	if ce == nil {
		return
	}
	fields := append(FrameFields(h), zap.String("direction", direction))
	if len(payload) > 0 {
		fields = append(fields,
			zap.String("hex", hexDump(payload)),
			zap.String("ascii", asciiDump(payload)),
		)
	}
	ce.Write(fields...)
}

func hexDump(data []byte) string {
	if len(data) > maxDump {
		return hex.EncodeToString(data[:maxDump]) + "..."
	}
	return hex.EncodeToString(data)
}

func asciiDump(data []byte) string {
	if len(data) > maxDump {
		data = data[:maxDump]
	}
	out := make([]byte, len(data))
	for i, b := range data {
		if b < 32 || b > 126 {
			b = '.'
		}
		out[i] = b
	}
	return string(out)
}

// Sync flushes the global logger.
func Sync() {
	_ = GetLogger().Sync()
}
