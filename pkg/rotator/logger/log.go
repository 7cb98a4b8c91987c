package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level = zapcore.Level

const (
	DebugLevel = zapcore.DebugLevel
	InfoLevel  = zapcore.InfoLevel
	WarnLevel  = zapcore.WarnLevel
	ErrorLevel = zapcore.ErrorLevel
	FatalLevel = zapcore.FatalLevel
)

// ParseLevel 非法输入回退到 info
func ParseLevel(s string) Level {
	var l Level
	if err := l.Set(s); err != nil {
		return InfoLevel
	}
	return l
}

type Logger struct {
	logger *zap.Logger
	al     *zap.AtomicLevel
}

func New(level Level, fileOut io.Writer) *Logger {
	al := zap.NewAtomicLevelAt(level)

	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncodeCaller = zapcore.ShortCallerEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.Lock(os.Stdout), al)

	if fileOut != nil {
		fileCfg := cfg
		fileCfg.EncodeLevel = zapcore.CapitalLevelEncoder // 文件里不要颜色转义
		core = zapcore.NewTee(
			core,
			zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(fileOut), al),
		)
	}

	return &Logger{logger: zap.New(core).WithOptions(zap.AddCaller(), zap.AddCallerSkip(2)), al: &al}
}

// NewWithLogFile 同时输出到控制台和滚动日志文件
func NewWithLogFile(level Level, path string) *Logger {
	fileWriter := zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     7, // days
	})
	return New(level, fileWriter)
}

func (l *Logger) SetLevel(level Level) {
	if l.al != nil {
		l.al.SetLevel(level)
	}
}

type Field = zap.Field

func (l *Logger) Debug(msg string, fields ...Field) { l.logger.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...Field)  { l.logger.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.logger.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...Field) { l.logger.Error(msg, fields...) }
func (l *Logger) Fatal(msg string, fields ...Field) { l.logger.Fatal(msg, fields...) }

func (l *Logger) Debugf(msg string, args ...interface{}) { l.logger.Debug(fmt.Sprintf(msg, args...)) }
func (l *Logger) Infof(msg string, args ...interface{})  { l.logger.Info(fmt.Sprintf(msg, args...)) }
func (l *Logger) Warnf(msg string, args ...interface{})  { l.logger.Warn(fmt.Sprintf(msg, args...)) }
func (l *Logger) Errorf(msg string, args ...interface{}) { l.logger.Error(fmt.Sprintf(msg, args...)) }
func (l *Logger) Fatalf(msg string, args ...interface{}) { l.logger.Fatal(fmt.Sprintf(msg, args...)) }

func (l *Logger) Sync() error { return l.logger.Sync() }

var std = New(InfoLevel, nil)

// Default 默认日志实例
func Default() *Logger { return std }

// ReplaceDefault 替换默认日志实例
func ReplaceDefault(l *Logger) { std = l }

// SetLevel 设置默认实例的日志级别
func SetLevel(level Level) { std.SetLevel(level) }

func Debug(msg string, fields ...Field) { std.Debug(msg, fields...) }
func Info(msg string, fields ...Field)  { std.Info(msg, fields...) }
func Warn(msg string, fields ...Field)  { std.Warn(msg, fields...) }
func Error(msg string, fields ...Field) { std.Error(msg, fields...) }
func Fatal(msg string, fields ...Field) { std.Fatal(msg, fields...) }

func Debugf(msg string, args ...interface{}) { std.Debugf(msg, args...) }
func Infof(msg string, args ...interface{})  { std.Infof(msg, args...) }
func Warnf(msg string, args ...interface{})  { std.Warnf(msg, args...) }
func Errorf(msg string, args ...interface{}) { std.Errorf(msg, args...) }
func Fatalf(msg string, args ...interface{}) { std.Fatalf(msg, args...) }

// Sync 同步日志
func Sync() error { return std.Sync() }
