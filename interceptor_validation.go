package fins

import "fmt"

// MAX_WORDS_PER_FRAME is the usual per-command word limit of FINS CPU units.
const MAX_WORDS_PER_FRAME = 999

// ValidationInterceptor rejects reads and writes larger than one FINS
// command can carry on most CPU units.
//
// Example:
//
//	client, _ := fins.NewClient(endpoint, fins.WithInterceptor(fins.ValidationInterceptor()))
//
//	_, err := client.ReadWords(ctx, 100, 2000)
//	// fins: invalid count: read of 2000 words exceeds 999
func ValidationInterceptor() Interceptor {
	return ValidationInterceptorWithLimits(MAX_WORDS_PER_FRAME, MAX_WORDS_PER_FRAME)
}

// ValidationInterceptorWithLimits creates a validation interceptor with custom limits
// maxReadCount: maximum number of words read in a single operation
// maxWriteCount: maximum number of words written in a single operation
func ValidationInterceptorWithLimits(maxReadCount, maxWriteCount uint16) Interceptor {
	return func(c *InterceptorCtx) (interface{}, error) {
		info := c.Info()
		switch info.Operation {
		case OpReadWords:
			if info.Count > maxReadCount {
				return nil, &ArgumentError{Arg: "count", Reason: fmt.Sprintf("read of %d words exceeds %d", info.Count, maxReadCount)}
			}
		case OpWriteWords, OpWriteWord, OpWriteWordArray, OpWriteText, OpZeroFill:
			if info.Count > maxWriteCount {
				return nil, &ArgumentError{Arg: "count", Reason: fmt.Sprintf("write of %d words exceeds %d", info.Count, maxWriteCount)}
			}
		}

		return c.Invoke(nil)
	}
}

// AddressRange is an inclusive range of data memory words.
type AddressRange struct {
	Min, Max uint16
}

// AddressRangeValidator creates an interceptor that only lets operations
// touch words inside one of the allowed ranges.
//
// Example:
//
//	// Only allow D1000-D1099
//	client, _ := fins.NewClient(endpoint, fins.WithInterceptor(
//		fins.AddressRangeValidator(fins.AddressRange{Min: 1000, Max: 1099}),
//	))
func AddressRangeValidator(allowed ...AddressRange) Interceptor {
	return func(c *InterceptorCtx) (interface{}, error) {
		info := c.Info()
		first := uint32(info.Address)
		last := first
		if info.Count > 0 {
			last = first + uint32(info.Count) - 1
		}
		if info.EndAddress > info.Address && uint32(info.EndAddress) > last {
			last = uint32(info.EndAddress)
		}

		for _, r := range allowed {
			if first >= uint32(r.Min) && last <= uint32(r.Max) {
				return c.Invoke(nil)
			}
		}
		return nil, &ArgumentError{Arg: "address", Reason: fmt.Sprintf("%s would access D%d-D%d, outside the allowed ranges",
			info.Operation, first, last)}
	}
}

// ReadOnlyInterceptor creates an interceptor that blocks all write operations
//
// Example:
//
//	client, _ := fins.NewClient(endpoint, fins.WithInterceptor(fins.ReadOnlyInterceptor()))
func ReadOnlyInterceptor() Interceptor {
	return func(c *InterceptorCtx) (interface{}, error) {
		info := c.Info()
		switch info.Operation {
		case OpWriteWords, OpWriteWord, OpWriteWordArray, OpWriteText, OpZeroFill:
			return nil, fmt.Errorf("write operation %s is not allowed in read-only mode", info.Operation)
		}

		return c.Invoke(nil)
	}
}
