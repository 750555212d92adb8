package log

import (
	"fmt"
	"os"

	"github.com/abhissng/relay/utils/helpers"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log struct holds the zap Logger instance.
type Log struct {
	*zap.Logger
	closeLog func() error // Function to gracefully shut down the logger
}

// NewBasicLogger creates a logger with default configuration for utilities and bootstrap code.
func NewBasicLogger(isProd, enableRotation bool) *Log {
	opts := []LoggerOption{}
	if enableRotation {
		opts = append(opts, WithRotationFile(defaultLogFile()))
	}
	basicLogger, err := NewLogger(NewLoggerConfig(isProd, opts...))
	if err != nil {
		helpers.Println("warn", "falling back to nop logger: ", err)
		return NewNopLogger()
	}
	return basicLogger
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *Log {
	return &Log{Logger: zap.NewNop()}
}

// FromZap wraps an existing zap logger, typically an observer core in tests.
func FromZap(l *zap.Logger) *Log {
	return &Log{Logger: l}
}

// NewLogger creates a new Log instance with the specified log level and options.
func NewLogger(cfg *LoggerConfig) (*Log, error) {
	atomicLevel := zap.NewAtomicLevel()
	if cfg.Level != "" {
		if err := atomicLevel.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	} else if cfg.IsProd {
		atomicLevel.SetLevel(zapcore.InfoLevel)
	} else {
		atomicLevel.SetLevel(zapcore.DebugLevel)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:       "time",
		LevelKey:      "level",
		NameKey:       "log",
		CallerKey:     "caller",
		MessageKey:    "msg",
		StacktraceKey: "stacktrace",
		EncodeLevel: func() zapcore.LevelEncoder {
			if cfg.IsProd {
				return zapcore.CapitalLevelEncoder
			}
			return zapcore.CapitalColorLevelEncoder
		}(),
		EncodeTime:     zapcore.ISO8601TimeEncoder, // 2025-02-22T13:43:42.977+0530
		EncodeCaller:   helpers.TailCallerEncoder(cfg.EncoderTailLength),
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	options := []zap.Option{
		zap.Fields(
			zap.String("environment", cfg.Environment),
			zap.String("service", cfg.ServiceName),
		),
		zap.AddCaller(),
		zap.AddCallerSkip(1),
	}
	options = append(options, cfg.ZapOptions...)

	var encoder zapcore.Encoder
	if cfg.IsProd {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	cores := []zapcore.Core{zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), atomicLevel)}

	var closeFunc func() error
	if cfg.RotationFile != "" {
		rotator := newLumberjackLogger(cfg.RotationFile)
		// rotated files are always JSON so they can be shipped as-is
		fileEncoderConfig := encoderConfig
		fileEncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileEncoderConfig), zapcore.AddSync(rotator), atomicLevel))
		closeFunc = rotator.Close
	}

	l := zap.New(zapcore.NewTee(cores...), options...)
	return &Log{Logger: l, closeLog: closeFunc}, nil
}

// Debug logs a message at the DebugLevel.
func (l *Log) Debug(msg string, fields ...zap.Field) {
	l.Logger.Debug(msg, fields...)
}

// Info logs a message at the InfoLevel.
func (l *Log) Info(msg string, fields ...zap.Field) {
	l.Logger.Info(msg, fields...)
}

// Warn logs a message at the WarnLevel.
func (l *Log) Warn(msg string, fields ...zap.Field) {
	l.Logger.Warn(msg, fields...)
}

// Error logs a message at the ErrorLevel.
func (l *Log) Error(msg string, fields ...zap.Field) {
	l.Logger.Error(msg, fields...)
}

// Fatal logs a message at the FatalLevel and then exits the program.
func (l *Log) Fatal(msg string, fields ...zap.Field) {
	l.Logger.Fatal(msg, fields...)
}

// With creates a child Log with the specified fields.
func (l *Log) With(fields ...zap.Field) *Log {
	return &Log{Logger: l.Logger.With(fields...)}
}

// Sync flushes any buffered log entries. Applications should take care to call
// Sync before exiting.
func (l *Log) Sync() error {
	err := l.Logger.Sync()
	if l.closeLog != nil {
		if closeErr := l.closeLog(); closeErr != nil {
			if err != nil {
				return fmt.Errorf("zap sync error: %w; rotation close error: %v", err, closeErr)
			}
			return closeErr
		}
	}
	return err
}

func newLumberjackLogger(filename string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
}

func defaultLogFile() string {
	name := helpers.GetServiceName()
	if name == "" {
		name = "relay"
	}
	return os.TempDir() + "/" + name + ".log"
}
