// 包 logger：进程级 slog 日志器；级别与格式由环境变量决定，各组件通过 L() 或构造参数取用
package logger

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu            sync.RWMutex
	defaultLogger *slog.Logger
)

// ParseLevel：将 LOG_LEVEL 文本映射为 slog 级别，未知值回退到 info
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Setup：按 LOG_LEVEL / LOG_FORMAT / LOG_FILE 初始化默认日志器并返回
// 约束：始终输出到标准错误；LOG_FILE 非空时同时写入按大小轮转的文件（LOG_FILE_MAX_MB，默认 64）；
// LOG_FORMAT=json 时输出 JSON，其余为文本
func Setup() *slog.Logger {
	var w io.Writer = os.Stderr
	if f := os.Getenv("LOG_FILE"); f != "" {
		w = io.MultiWriter(os.Stderr, RotatingFile(f, os.Getenv("LOG_FILE_MAX_MB")))
	}
	return SetupWriter(w, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
}

// RotatingFile：按大小轮转、保留 14 天并压缩旧文件的日志文件
func RotatingFile(path, maxMB string) *lumberjack.Logger {
	size := 64
	if n, err := strconv.Atoi(maxMB); err == nil && n > 0 {
		size = n
	}
	return &lumberjack.Logger{Filename: path, MaxSize: size, MaxAge: 14, Compress: true}
}

// SetupWriter：与 Setup 相同，但允许指定输出目标（命令行工具与测试使用）
func SetupWriter(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var h slog.Handler
	if strings.ToLower(format) == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	l := slog.New(h)
	mu.Lock()
	defaultLogger = l
	mu.Unlock()
	return l
}

// L：获取默认日志器，未初始化时按环境变量初始化
func L() *slog.Logger {
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()
	if l == nil {
		return Setup()
	}
	return l
}

// Discard：丢弃全部输出的日志器，供测试注入
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
