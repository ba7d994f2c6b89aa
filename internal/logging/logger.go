package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// Config 日志配置
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// New 按配置创建 logrus 日志器，调用位置写入 source 字段
func New(cfg Config) *logrus.Logger {
	return NewWithOutput(cfg, os.Stdout)
}

// NewWithOutput 指定输出，便于测试
func NewWithOutput(cfg Config, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)

	level := logrus.InfoLevel
	if cfg.Level != "" {
		if lv, err := logrus.ParseLevel(strings.ToLower(cfg.Level)); err == nil {
			level = lv
		}
	}
	logger.SetLevel(level)

	// 关闭默认的 func/file 字段，由 SourceFormatter 输出简短位置
	noCaller := func(*runtime.Frame) (string, string) { return "", "" }
	var underlying logrus.Formatter
	if strings.EqualFold(cfg.Format, "json") {
		underlying = &logrus.JSONFormatter{CallerPrettyfier: noCaller}
	} else {
		underlying = &logrus.TextFormatter{FullTimestamp: true, CallerPrettyfier: noCaller}
	}
	logger.SetFormatter(&SourceFormatter{Underlying: underlying})
	logger.SetReportCaller(true)
	return logger
}

// SourceFormatter 包装其他 formatter，加上 source=文件名:行号
type SourceFormatter struct {
	Underlying logrus.Formatter
}

func (f *SourceFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	if entry.HasCaller() {
		entry.Data["source"] = fmt.Sprintf("%s:%d", filepath.Base(entry.Caller.File), entry.Caller.Line)
	}
	return f.Underlying.Format(entry)
}

// Component 带 component 字段的日志入口
func Component(logger *logrus.Logger, name string) *logrus.Entry {
	return logger.WithField("component", name)
}

// Discard 丢弃所有输出，用于测试和命令行工具的静默模式
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
