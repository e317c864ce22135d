package utils

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"cryptofolio/pkg/logger"
)

func ToPointer[T any](value T) *T {
	return &value
}

// ShouldContinue reports whether the context is still alive, logging the
// caller when it is not. Engines call it between records so an in-flight
// tick stops cooperatively on shutdown.
func ShouldContinue(ctx context.Context, log *logger.Logger) bool {
	select {
	case <-ctx.Done():
		pc, _, _, ok := runtime.Caller(1)
		funcName := "unknown"
		if ok {
			if fn := runtime.FuncForPC(pc); fn != nil {
				parts := strings.Split(fn.Name(), "/")
				funcName = parts[len(parts)-1]
			}
		}
		log.Warn("Context cancelled",
			logger.StringField("caller", funcName),
		)
		return false
	default:
		return true
	}
}

func FormatPercentage(value float64) string {
	return fmt.Sprintf("%+.2f%%", value)
}

func FormatPrice(value float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.8f", value), "0"), ".")
}

// SplitSymbol splits a trading pair like "BTC/USDT" or "BTC_USDT" into its
// base and quote assets. A symbol without a separator is returned as the
// base with an empty quote.
func SplitSymbol(symbol string) (base, quote string) {
	for _, sep := range []string{"/", "_", "-"} {
		if i := strings.Index(symbol, sep); i > 0 {
			return strings.ToUpper(symbol[:i]), strings.ToUpper(symbol[i+len(sep):])
		}
	}
	return strings.ToUpper(symbol), ""
}
