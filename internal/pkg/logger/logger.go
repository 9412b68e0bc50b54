// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// global 是进程级的默认 Logger，在 Init 之前也可以安全使用
var global = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Init 初始化全局 Logger
// service 会作为固定字段附加到每条日志上，level 形如 "debug" / "info" / "warn"
func Init(service, level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	writer := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}

	global = zerolog.New(writer).
		Level(lvl).
		With().
		Timestamp().
		Str("service", service).
		Logger()
}

// WithContext 把一个带有附加字段的 Logger 绑定到 context 上
// 下游通过 Ctx(ctx) 取回，避免在调用链里手动传递日志字段
func WithContext(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// Ctx 从 context 中取出绑定的 Logger，没有则返回全局 Logger
func Ctx(ctx context.Context) *zerolog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return &l
	}
	return &global
}

// L 返回全局 Logger，用于没有 context 的场景（如 main 的组装阶段）
func L() *zerolog.Logger {
	return &global
}
