package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName tags every production log line
const ServiceName = "merch-display"

// Log is a no-op until one of the Init functions runs, so packages and
// tests may log before main configures it.
var Log *zap.SugaredLogger = zap.NewNop().Sugar()

// InitLogger initializes the global logger
func InitLogger() {
	config := zap.NewProductionConfig()

	// Set more readable time format
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.InitialFields = map[string]interface{}{"service": ServiceName}

	logger, err := config.Build()
	if err != nil {
		panic(err)
	}

	Log = logger.Sugar()
}

// InitLoggerDev initializes logger in development mode (more readable output)
func InitLoggerDev() {
	config := zap.NewDevelopmentConfig()

	logger, err := config.Build()
	if err != nil {
		panic(err)
	}

	Log = logger.Sugar()
}

// Init picks the production or development logger from LOG_MODE.
func Init(mode string) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "prod", "production", "json":
		InitLogger()
	default:
		InitLoggerDev()
	}
}

// Sync flushes buffered logs
func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}
