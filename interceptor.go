package fins

import "context"

// OperationType represents the type of FINS operation
type OperationType string

const (
	OpReadWords      OperationType = "ReadWords"
	OpWriteWords     OperationType = "WriteWords"
	OpWriteWord      OperationType = "WriteWord"
	OpWriteWordArray OperationType = "WriteWordArray"
	OpWriteText      OperationType = "WriteText"
	OpZeroFill       OperationType = "ZeroFill"
)

// InterceptorInfo contains information about the operation being performed
type InterceptorInfo struct {
	Operation  OperationType
	Address    uint16
	EndAddress uint16      // Only for range operations (WriteText, ZeroFill)
	Count      uint16      // Words read or written
	Data       interface{} // For write operations ([]byte, []uint16, string)
}

// Invoker is a function that executes the actual operation
type Invoker func(ctx context.Context) (interface{}, error)

// InterceptorCtx carries one operation through an interceptor chain.
type InterceptorCtx struct {
	ctx     context.Context
	info    *InterceptorInfo
	invoker Invoker
}

// Context returns the context the operation was called with.
func (c *InterceptorCtx) Context() context.Context { return c.ctx }

// Info describes the operation.
func (c *InterceptorCtx) Info() *InterceptorInfo { return c.info }

// Invoke runs the next step of the chain. A nil ctx keeps the original one.
func (c *InterceptorCtx) Invoke(ctx context.Context) (interface{}, error) {
	if ctx == nil {
		ctx = c.ctx
	}
	return c.invoker(ctx)
}

// Interceptor wraps client operations. It can log, measure, validate or
// short-circuit an operation; it calls c.Invoke to continue.
//
// Example:
//
//	func timing(c *fins.InterceptorCtx) (interface{}, error) {
//	    start := time.Now()
//	    result, err := c.Invoke(nil)
//	    log.Printf("%s took %v", c.Info().Operation, time.Since(start))
//	    return result, err
//	}
type Interceptor func(c *InterceptorCtx) (interface{}, error)

// ChainInterceptors chains multiple interceptors into a single interceptor
// Interceptors are executed in order: first interceptor wraps second, second wraps third, etc.
func ChainInterceptors(interceptors ...Interceptor) Interceptor {
	if len(interceptors) == 0 {
		return nil
	}

	if len(interceptors) == 1 {
		return interceptors[0]
	}

	return func(c *InterceptorCtx) (interface{}, error) {
		return interceptors[0](&InterceptorCtx{
			ctx:  c.ctx,
			info: c.info,
			invoker: func(ctx context.Context) (interface{}, error) {
				return ChainInterceptors(interceptors[1:]...)(&InterceptorCtx{ctx: ctx, info: c.info, invoker: c.invoker})
			},
		})
	}
}
