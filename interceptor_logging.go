package fins

import (
	"time"

	"go.uber.org/zap"
)

// LoggingInterceptor creates an interceptor that logs all operations
// It logs operation start, end, duration, and any errors
//
// Example:
//
//	logger, _ := zap.NewProduction()
//	client, _ := fins.NewClient(endpoint, fins.WithInterceptor(fins.LoggingInterceptor(logger)))
//
// Output:
//
//	DEBUG	FINS	starting	{"operation": "ReadWords", "address": 1000, "count": 28}
//	DEBUG	FINS	completed	{"operation": "ReadWords", "duration": "1.2ms"}
func LoggingInterceptor(logger *zap.Logger) Interceptor {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("FINS")

	return func(c *InterceptorCtx) (interface{}, error) {
		info := c.Info()
		start := time.Now()

		logger.Debug("starting",
			zap.String("operation", string(info.Operation)),
			zap.Uint16("address", info.Address),
			zap.Uint16("count", info.Count),
		)

		result, err := c.Invoke(nil)

		duration := time.Since(start)
		if err != nil {
			logger.Error("failed",
				zap.String("operation", string(info.Operation)),
				zap.Uint16("address", info.Address),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		} else {
			logger.Debug("completed",
				zap.String("operation", string(info.Operation)),
				zap.Duration("duration", duration),
			)
		}

		return result, err
	}
}
