package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/fyerfyer/pdf-rag/config"
)

// New 根据配置创建日志记录器
// 默认输出JSON格式到标准输出，配置了日志文件时同时写入按大小滚动的文件
func New(cfg config.LogConfig) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(output(cfg))
	log.SetLevel(ParseLevel(cfg.Level))

	if strings.EqualFold(cfg.Format, "text") {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	}

	return log
}

// ParseLevel 解析日志级别，无法识别时返回Info
func ParseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// output 构造日志输出目标
func output(cfg config.LogConfig) io.Writer {
	if cfg.File == "" {
		return os.Stdout
	}

	if dir := filepath.Dir(cfg.File); dir != "." {
		_ = os.MkdirAll(dir, 0755)
	}

	rotating := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}
	return io.MultiWriter(os.Stdout, rotating)
}
