package logging

import (
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	uberzap "go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// 日志级别，和 logr 的 V() 配合使用
const (
	DEFAULT = 0
	VERBOSE = 3
	DEBUG   = 4
	TRACE   = 5
)

// NewLogger 创建一个以 zap 为后端的 logr.Logger
// verbosity 越大输出越详细；development 为 true 时使用人类可读的控制台格式
func NewLogger(verbosity int, development bool) (logr.Logger, error) {
	cfg := uberzap.NewProductionConfig()
	if development {
		cfg = uberzap.NewDevelopmentConfig()
	}
	cfg.Level = uberzap.NewAtomicLevelAt(zapLevel(verbosity))
	// 控制台那一行报告走 stdout，日志走 stderr，互不干扰
	cfg.OutputPaths = []string{"stderr"}

	zl, err := cfg.Build()
	if err != nil {
		return logr.Discard(), err
	}
	return zapr.NewLogger(zl), nil
}

// zapLevel 把 logr 的 V(n) 换成 zap 的 -n 级别
// zapcore.Level 是 int8，超出 0..127 的值先截断，否则转换会回绕
func zapLevel(verbosity int) zapcore.Level {
	verbosity = min(max(verbosity, 0), 127)
	return zapcore.Level(-verbosity)
}

// NewTestLogger 创建一个开发模式的 logger，测试里用
func NewTestLogger() logr.Logger {
	zl, err := uberzap.NewDevelopment(uberzap.AddCaller())
	if err != nil {
		return logr.Discard()
	}
	return zapr.NewLogger(zl)
}

// Fatal 先 Error 再 os.Exit(1)
func Fatal(logger logr.Logger, err error, msg string, keysAndValues ...interface{}) {
	logger.Error(err, msg, keysAndValues...)
	os.Exit(1)
}
