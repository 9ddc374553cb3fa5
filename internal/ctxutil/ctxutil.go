package ctxutil

import (
	"context"
	"time"
)

// приватный ключ, чтобы исключить коллизии
type key int

const keyOpName key = iota

// WithOp /Op — имя операции (для логов и тегов в Sentry)
func WithOp(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, keyOpName, name)
}

func Op(ctx context.Context) (string, bool) {
	v := ctx.Value(keyOpName)
	if v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Таймауты запросов к бэкенду. 8 секунд — общий бюджет любого вызова.
var (
	DefaultRequestTimeout = 8 * time.Second
)

// WithTimeout — удобная обёртка над context.WithTimeout.
func WithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d)
}

// WithRequestTimeout — стандартный бюджет исходящего запроса.
// Если у родителя дедлайн ближе — берём остаток.
func WithRequestTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	if dl, ok := parent.Deadline(); ok {
		remain := time.Until(dl)
		if remain < DefaultRequestTimeout {
			return WithTimeout(parent, remain)
		}
	}
	return WithTimeout(parent, DefaultRequestTimeout)
}
