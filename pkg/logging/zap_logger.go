package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	maxLogFileSizeMB = 50
	maxLogFileAge    = 30
	maxLogBackups    = 10
)

type ZapLogger struct {
	sugarLogger *zap.SugaredLogger
	rotator     *SequentialRotator
}

var _ Logger = (*ZapLogger)(nil)

// NewZapLogger builds a logger that writes colored lines to stdout and JSON lines
// to a daily, size-rotated file under <data>/logs/<process>/.
func NewZapLogger(config LoggerConfig) (*ZapLogger, error) {
	level := getLogLevel(config.IsDevelopment)

	consoleEncoderConfig := zap.NewDevelopmentEncoderConfig()
	consoleEncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(TimeFormat)
	consoleEncoderConfig.EncodeLevel = customColorLevelEncoder
	consoleEncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleEncoderConfig),
			zapcore.Lock(os.Stdout),
			level,
		),
	}

	var rotator *SequentialRotator
	if !config.DisableFile {
		logDir := config.LogDir
		if logDir == "" {
			logDir = filepath.Join(getBaseDataDir(), LogsDir, string(config.ProcessName))
		}
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		fileName := filepath.Join(logDir, time.Now().UTC().Format(LogFileFormat))
		rotator = NewSequentialRotator(fileName, maxLogFileSizeMB, maxLogFileAge, maxLogBackups)

		fileEncoderConfig := zap.NewProductionEncoderConfig()
		fileEncoderConfig.TimeKey = "timestamp"
		fileEncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(fileEncoderConfig),
			zapcore.AddSync(rotator),
			level,
		))
	}

	logger := zap.New(
		zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.Fields(zap.String("process", string(config.ProcessName))),
	)

	return &ZapLogger{
		sugarLogger: logger.Sugar(),
		rotator:     rotator,
	}, nil
}

func getLogLevel(isDevelopment bool) zapcore.Level {
	if isDevelopment {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

func customColorLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	var color, label string
	switch level {
	case zapcore.DebugLevel:
		color, label = colorBlue, "DBG"
	case zapcore.InfoLevel:
		color, label = colorGreen, "INF"
	case zapcore.WarnLevel:
		color, label = colorYellow, "WRN"
	case zapcore.ErrorLevel:
		color, label = colorRed, "ERR"
	case zapcore.FatalLevel, zapcore.PanicLevel, zapcore.DPanicLevel:
		color, label = colorMagenta, "FTL"
	default:
		color, label = colorWhite, "???"
	}
	enc.AppendString(color + label + colorReset)
}

func (z *ZapLogger) Debug(msg string, tags ...interface{}) {
	z.sugarLogger.Debugw(msg, tags...)
}

func (z *ZapLogger) Info(msg string, tags ...interface{}) {
	z.sugarLogger.Infow(msg, tags...)
}

func (z *ZapLogger) Warn(msg string, tags ...interface{}) {
	z.sugarLogger.Warnw(msg, tags...)
}

func (z *ZapLogger) Error(msg string, tags ...interface{}) {
	z.sugarLogger.Errorw(msg, tags...)
}

func (z *ZapLogger) Fatal(msg string, tags ...interface{}) {
	z.sugarLogger.Fatalw(msg, tags...)
}

func (z *ZapLogger) Debugf(template string, args ...interface{}) {
	z.sugarLogger.Debugf(template, args...)
}

func (z *ZapLogger) Infof(template string, args ...interface{}) {
	z.sugarLogger.Infof(template, args...)
}

func (z *ZapLogger) Warnf(template string, args ...interface{}) {
	z.sugarLogger.Warnf(template, args...)
}

func (z *ZapLogger) Errorf(template string, args ...interface{}) {
	z.sugarLogger.Errorf(template, args...)
}

func (z *ZapLogger) Fatalf(template string, args ...interface{}) {
	z.sugarLogger.Fatalf(template, args...)
}

func (z *ZapLogger) With(tags ...interface{}) Logger {
	return &ZapLogger{
		sugarLogger: z.sugarLogger.With(tags...),
		rotator:     z.rotator,
	}
}

// Shutdown flushes buffered entries and closes the log file.
// Sync errors on stdout are expected on some platforms and ignored.
func (z *ZapLogger) Shutdown() error {
	_ = z.sugarLogger.Sync()
	if z.rotator != nil {
		return z.rotator.Close()
	}
	return nil
}
