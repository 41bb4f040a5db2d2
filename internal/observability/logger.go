package observability

import (
	"math/rand"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitLogger builds the process-wide production logger using the default
// service name. Most callers should use InitLoggerWithService instead.
func InitLogger() (*zap.Logger, error) {
	return InitLoggerWithLevel(levelFromEnv(), "addecide")
}

// InitLoggerWithService builds a production logger named after the service.
// The log level comes from ENV/LOG_LEVEL.
func InitLoggerWithService(serviceName string) (*zap.Logger, error) {
	return InitLoggerWithLevel(levelFromEnv(), serviceName)
}

// InitLoggerWithLevel builds a JSON logger at the given level, names it with
// the service name and installs it as zap's global logger.
func InitLoggerWithLevel(level zapcore.Level, serviceName string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)

	// Field names the log shipper expects.
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.NameKey = "logger"
	cfg.EncoderConfig.CallerKey = "caller"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.StacktraceKey = "stacktrace"

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	logger = logger.Named(serviceName).With(zap.String("service", serviceName))
	zap.ReplaceGlobals(logger)
	return logger, nil
}

// levelFromEnv derives the log level from LOG_LEVEL, falling back to a
// per-environment default (debug in development, info elsewhere).
func levelFromEnv() zapcore.Level {
	switch strings.ToUpper(os.Getenv("LOG_LEVEL")) {
	case "DEBUG":
		return zap.DebugLevel
	case "INFO":
		return zap.InfoLevel
	case "WARN":
		return zap.WarnLevel
	case "ERROR":
		return zap.ErrorLevel
	}

	switch strings.ToLower(os.Getenv("ENV")) {
	case "development", "dev":
		return zap.DebugLevel
	default:
		return zap.InfoLevel
	}
}

// ShouldSample reports whether a log line should be emitted given a sampling
// rate in [0.0, 1.0]. Used to keep per-request debug logging cheap on the
// hot decision path.
func ShouldSample(rate float64) bool {
	if rate >= 1.0 {
		return true
	}
	if rate <= 0.0 {
		return false
	}
	return rand.Float64() < rate
}

// GetSamplingRate returns the per-request log sampling rate for the current
// environment: everything in development, 10% in production.
func GetSamplingRate() float64 {
	switch strings.ToLower(os.Getenv("ENV")) {
	case "development", "dev":
		return 1.0
	case "staging", "test":
		return 0.5
	default:
		return 0.1
	}
}
