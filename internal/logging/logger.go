package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const fileName = "healthwatch.log"

// Options controls where and how much we log. The zero value logs at info
// into ./logs with no terminal output.
type Options struct {
	Dir    string
	Level  string // debug | info | warn | error
	Stderr bool   // mirror entries to stderr in console format
}

// NewLogger builds a JSON logger writing to a rotated file under o.Dir.
func NewLogger(o Options) (*zap.Logger, error) {
	if o.Dir == "" {
		o.Dir = "logs"
	}
	lvl := zapcore.InfoLevel
	if o.Level != "" {
		parsed, err := zapcore.ParseLevel(o.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		lvl = parsed
	}
	if err := os.MkdirAll(o.Dir, 0o755); err != nil {
		return nil, err
	}

	rotated := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(o.Dir, fileName),
		MaxSize:    10, // MB
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	})
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{zapcore.NewCore(zapcore.NewJSONEncoder(enc), rotated, lvl)}
	if o.Stderr {
		cons := zap.NewDevelopmentEncoderConfig()
		cons.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(cons), zapcore.Lock(os.Stderr), lvl))
	}
	return zap.New(zapcore.NewTee(cores...)), nil
}

// CronLogger adapts a zap logger to cron.Logger. Cron's own messages are
// prefixed so they are easy to filter next to ours.
type CronLogger struct {
	L *zap.SugaredLogger
}

var _ cron.Logger = CronLogger{}

func NewCronLogger(l *zap.Logger) CronLogger {
	return CronLogger{L: l.Sugar()}
}

func (c CronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.L.Debugw("cron_"+msg, keysAndValues...)
}

func (c CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.L.Errorw("cron_"+msg, append(keysAndValues, "error", err)...)
}
