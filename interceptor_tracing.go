package fins

import "go.uber.org/zap"

// TracingInterceptor creates an interceptor that extracts trace IDs from the
// context under traceIDKey and logs them with each operation. Operations
// without a trace ID pass through silently.
//
// Example:
//
//	client.SetInterceptor(fins.TracingInterceptor(traceKey{}, logger))
//
//	ctx := context.WithValue(context.Background(), traceKey{}, "trace-12345")
//	client.ReadWords(ctx, 100, 5)
//	// DEBUG	FINS.trace	ReadWords	{"trace_id": "trace-12345", "address": 100}
func TracingInterceptor(traceIDKey interface{}, logger *zap.Logger) Interceptor {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("FINS").Named("trace")

	return func(c *InterceptorCtx) (interface{}, error) {
		if traceID := c.Context().Value(traceIDKey); traceID != nil {
			info := c.Info()
			logger.Debug(string(info.Operation),
				zap.Any("trace_id", traceID),
				zap.Uint16("address", info.Address),
			)
		}
		return c.Invoke(nil)
	}
}
