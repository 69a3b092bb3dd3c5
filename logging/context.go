package logging

import (
	"context"

	"go.viam.com/utils"
)

type debugLogKeyType int

const debugLogKeyID = debugLogKeyType(iota)

// EnableDebugMode returns a new context with debug logging state attached. An empty `debugLogKey`
// generates a random value.
func EnableDebugMode(ctx context.Context, debugLogKey string) context.Context {
	if debugLogKey == "" {
		debugLogKey = utils.RandomAlphaString(6)
	}
	return context.WithValue(ctx, debugLogKeyID, debugLogKey)
}

// IsDebugMode returns whether the input context has debug logging enabled.
func IsDebugMode(ctx context.Context) bool {
	return GetName(ctx) != ""
}

// GetName returns the debug log key included when enabling the context for debug logging.
func GetName(ctx context.Context) string {
	if val, ok := ctx.Value(debugLogKeyID).(string); ok {
		return val
	}
	return ""
}
