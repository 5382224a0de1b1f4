package fins

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestSimulator starts a simulator on a free loopback port.
func newTestSimulator(t *testing.T) *Server {
	t.Helper()
	s, err := NewPLCSimulator(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// newTestPair returns a simulator and a client talking to it.
func newTestPair(t *testing.T, opts ...Option) (*Server, *Client) {
	t.Helper()
	s := newTestSimulator(t)
	c, err := NewClient(s.Endpoint(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return s, c
}

func TestFinsClient(t *testing.T) {
	ctx := context.Background()
	_, c := newTestPair(t)

	// ------------- Test Words
	err := c.WriteWordArray(ctx, 100, []uint16{5, 4, 3, 2})
	assert.Nil(t, err)

	buf, err := c.ReadWords(ctx, 100, 4)
	assert.Nil(t, err)
	assert.Equal(t, []byte{0x00, 0x05, 0x00, 0x04, 0x00, 0x03, 0x00, 0x02}, buf)

	v, err := DecodeWord(buf, 1, false)
	assert.Nil(t, err)
	assert.Equal(t, int16(4), v)

	// ------------- Test Float
	err = c.WriteWords(ctx, 104, EncodeFloat32(12.5))
	assert.Nil(t, err)

	buf, err = c.ReadWords(ctx, 100, 6)
	assert.Nil(t, err)
	f, err := DecodeFloat32(buf, 5, 4)
	assert.Nil(t, err)
	assert.Equal(t, float32(12.5), f)

	// ------------- Test Text
	err = c.WriteText(ctx, 10, 13, "HELLO", false)
	assert.Nil(t, err)

	buf, err = c.ReadWords(ctx, 10, 4)
	assert.Nil(t, err)
	assert.Equal(t, []byte("HELLO\x00\x00\x00"), buf)
	text, err := DecodeText(buf, 0, 3, false)
	assert.Nil(t, err)
	assert.Equal(t, "HELLO", text)

	err = c.WriteText(ctx, 10, 13, "HELLO", true)
	assert.Nil(t, err)

	buf, err = c.ReadWords(ctx, 10, 4)
	assert.Nil(t, err)
	assert.Equal(t, []byte("EHLL\x00O\x00\x00"), buf)
	text, err = DecodeText(buf, 0, 3, true)
	assert.Nil(t, err)
	assert.Equal(t, "HELLO", text)

	// ------------- Test Bool
	err = c.WriteWord(ctx, 200, 1)
	assert.Nil(t, err)
	buf, err = c.ReadWords(ctx, 200, 1)
	assert.Nil(t, err)
	on, err := DecodeBool(buf, 0)
	assert.Nil(t, err)
	assert.True(t, on)
}

func TestReadWordsFrame(t *testing.T) {
	ctx := context.Background()
	s, c := newTestPair(t)

	_, err := c.ReadWords(ctx, 1000, 28)
	require.NoError(t, err)

	frame := s.LastRequest()
	assert.Len(t, frame, 18)
	assert.Equal(t, []byte{0x80, 0x00, 0x02, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x1A}, frame[:10])
	assert.Equal(t, []byte{0x01, 0x01, 0x82, 0x03, 0xE8, 0x00, 0x00, 0x1C}, frame[10:])
}

func TestWriteWordFrame(t *testing.T) {
	ctx := context.Background()
	s, c := newTestPair(t)

	err := c.WriteWord(ctx, 1000, 1)
	require.NoError(t, err)

	frame := s.LastRequest()
	assert.Len(t, frame, 20)
	assert.Equal(t, []byte{0x01, 0x02}, frame[10:12])
	assert.Equal(t, byte(0x82), frame[12])
	assert.Equal(t, []byte{0x03, 0xE8}, frame[13:15])
	assert.Equal(t, []byte{0x00, 0x01}, frame[16:18])
	assert.Equal(t, []byte{0x00, 0x01}, frame[18:])
	assert.Equal(t, []byte{0x00, 0x01}, s.Words(1000, 1))
}

func TestWriteTextClearsWindow(t *testing.T) {
	ctx := context.Background()
	s, c := newTestPair(t)

	require.NoError(t, s.SetWords(10, []byte("XXXXXXXX")))

	err := c.WriteText(ctx, 10, 13, "ABC", false)
	require.NoError(t, err)
	assert.Equal(t, []byte("ABC\x00\x00\x00\x00\x00"), s.Words(10, 4))

	// Text longer than the window is truncated.
	err = c.WriteText(ctx, 10, 11, "ABCDEFGH", false)
	require.NoError(t, err)
	assert.Equal(t, []byte("ABCD\x00\x00\x00\x00"), s.Words(10, 4))
}

func TestZeroFill(t *testing.T) {
	ctx := context.Background()
	s, c := newTestPair(t)

	require.NoError(t, s.SetWords(50, EncodeWords(1, 2, 3, 4)))

	err := c.ZeroFill(ctx, 51, 52)
	require.NoError(t, err)
	assert.Equal(t, EncodeWords(1, 0, 0, 4), s.Words(50, 4))
	assert.Len(t, s.LastRequest(), 18+4)
}

func TestEndCodeError(t *testing.T) {
	ctx := context.Background()
	s, c := newTestPair(t)

	require.True(t, c.TestConnection(ctx, time.Second))
	require.True(t, c.Connectivity().PLC())

	s.ForceEndCode(0x0001)
	err := c.WriteWord(ctx, 1000, 1)
	require.Error(t, err)

	var pe *ProtocolError
	require.True(t, errors.As(err, &pe))
	assert.True(t, pe.HasCode)
	assert.Equal(t, uint16(0x0001), pe.EndCode)
	assert.Contains(t, err.Error(), "0001")
	assert.Contains(t, err.Error(), s.Endpoint().String())
	assert.Equal(t, Connectivity{PLC: false, Device: false}, c.Connectivity().Snapshot())

	// Reads carry no completion code check; the next success flips the state back.
	_, err = c.ReadWords(ctx, 0, 1)
	assert.Nil(t, err)
	assert.True(t, c.Connectivity().Device())
}

func TestShortReadResponse(t *testing.T) {
	ctx := context.Background()
	_, c := newTestPair(t)

	// Out of range: the simulator answers with an end code and no data.
	_, err := c.ReadWords(ctx, DM_AREA_WORDS-1, 2)
	var pe *ProtocolError
	require.True(t, errors.As(err, &pe))
	assert.False(t, pe.HasCode)
	assert.Contains(t, err.Error(), "too small")
	assert.False(t, c.Connectivity().PLC())
}

func TestResponseTimeout(t *testing.T) {
	ctx := context.Background()
	s, c := newTestPair(t, WithTimeout(100*time.Millisecond))

	_, err := c.ReadWords(ctx, 0, 1)
	require.NoError(t, err)
	before := c.transport.LocalAddr()
	require.NotNil(t, before)

	s.DropNext(1)
	start := time.Now()
	_, err = c.ReadWords(ctx, 0, 1)
	elapsed := time.Since(start)

	var te *TimeoutError
	require.True(t, errors.As(err, &te))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, READ_REQUEST_SIZE, te.Sent)
	assert.Less(t, elapsed, time.Second)
	assert.False(t, c.Connectivity().PLC())

	after := c.transport.LocalAddr()
	require.NotNil(t, after)
	assert.NotEqual(t, before.String(), after.String())

	// The same client recovers on the replacement socket.
	_, err = c.ReadWords(ctx, 0, 1)
	assert.Nil(t, err)
	assert.True(t, c.Connectivity().PLC())
}

func TestContextDeadlineShorterThanTimeout(t *testing.T) {
	s, c := newTestPair(t, WithTimeout(5*time.Second))

	s.DropNext(1)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.ReadWords(ctx, 0, 1)
	assert.Less(t, time.Since(start), time.Second)

	var te *TimeoutError
	assert.True(t, errors.As(err, &te))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestContextCancellation(t *testing.T) {
	_, c := newTestPair(t)

	// Create a context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Millisecond)
	defer cancel()

	// Wait for context to expire
	time.Sleep(10 * time.Millisecond)

	// Operation should fail with context error before any I/O
	_, err := c.ReadWords(ctx, 100, 5)
	assert.Error(t, err)
	assert.Equal(t, context.DeadlineExceeded, err)
	assert.Nil(t, c.transport.LocalAddr())
}

func TestContextCancellationImmediate(t *testing.T) {
	ctx := context.Background()
	_, c := newTestPair(t)

	require.NoError(t, c.WriteWord(ctx, 0, 7))

	// Create a context and cancel it immediately
	cctx, cancel := context.WithCancel(ctx)
	cancel()

	_, err := c.ReadWords(cctx, 100, 5)
	assert.Error(t, err)
	assert.Equal(t, context.Canceled, err)
	assert.True(t, c.Connectivity().PLC())
}

func TestContextCancelledDuringExchange(t *testing.T) {
	s, c := newTestPair(t, WithTimeout(5*time.Second))

	s.DropNext(1)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	_, err := c.ReadWords(ctx, 0, 1)
	assert.Less(t, time.Since(start), time.Second)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestArgumentErrors(t *testing.T) {
	ctx := context.Background()
	_, c := newTestPair(t)

	require.True(t, c.TestConnection(ctx, time.Second))

	var ae *ArgumentError

	_, err := c.ReadWords(ctx, 0, 0)
	assert.True(t, errors.As(err, &ae))

	err = c.WriteWords(ctx, 0, nil)
	assert.True(t, errors.As(err, &ae))

	err = c.WriteWords(ctx, 0, []byte{1, 2, 3})
	assert.True(t, errors.As(err, &ae))

	err = c.WriteWordArray(ctx, 0, nil)
	assert.True(t, errors.As(err, &ae))

	err = c.WriteText(ctx, 10, 9, "AB", false)
	assert.True(t, errors.As(err, &ae))

	err = c.WriteText(ctx, 10, 12, "", false)
	assert.True(t, errors.As(err, &ae))

	err = c.ZeroFill(ctx, 10, 9)
	assert.True(t, errors.As(err, &ae))

	// Rejected calls never touch the connectivity state.
	assert.True(t, c.Connectivity().PLC())
}

func TestTestConnection(t *testing.T) {
	ctx := context.Background()
	s, c := newTestPair(t)

	assert.False(t, c.Connectivity().PLC())
	assert.True(t, c.TestConnection(ctx, 0))
	assert.Equal(t, Connectivity{PLC: true, Device: true}, c.Connectivity().Snapshot())

	s.DropNext(1)
	assert.False(t, c.TestConnection(ctx, 100*time.Millisecond))
	assert.False(t, c.Connectivity().PLC())

	assert.True(t, c.TestConnection(ctx, time.Second))
}

func TestTestConnectionIgnoresInterceptors(t *testing.T) {
	ctx := context.Background()
	_, c := newTestPair(t, WithInterceptor(
		AddressRangeValidator(AddressRange{Min: 1000, Max: 1099}),
		ReadOnlyInterceptor(),
	))

	// D0 is outside the allowed range for callers.
	_, err := c.ReadWords(ctx, 0, 1)
	var ae *ArgumentError
	require.True(t, errors.As(err, &ae))

	assert.True(t, c.TestConnection(ctx, time.Second))
	assert.True(t, c.Connectivity().PLC())
}

func TestTestConnectionUnreachable(t *testing.T) {
	s := newTestSimulator(t)
	endpoint := s.Endpoint()
	s.Close()

	c, err := NewClient(endpoint, WithTimeout(200*time.Millisecond))
	require.NoError(t, err)
	defer c.Close()

	assert.False(t, c.TestConnection(context.Background(), 200*time.Millisecond))
	assert.False(t, c.Connectivity().PLC())
	assert.False(t, c.Connectivity().Device())
}

func TestSharedConnectivityState(t *testing.T) {
	state := NewConnectivityState()
	_, c := newTestPair(t, WithConnectivityState(state))

	assert.Same(t, state, c.Connectivity())
	require.True(t, c.TestConnection(context.Background(), time.Second))
	assert.True(t, state.PLC())
}

func TestClientClosed(t *testing.T) {
	ctx := context.Background()
	_, c := newTestPair(t)

	require.True(t, c.TestConnection(ctx, time.Second))
	assert.False(t, c.IsClosed())

	assert.Nil(t, c.Close())
	assert.True(t, c.IsClosed())
	assert.False(t, c.Connectivity().PLC())

	// Operations should return ClientClosedError
	_, err := c.ReadWords(ctx, 100, 5)
	assert.Error(t, err)
	assert.IsType(t, ClientClosedError{}, err)

	err = c.WriteWord(ctx, 100, 1)
	assert.IsType(t, ClientClosedError{}, err)

	assert.False(t, c.TestConnection(ctx, time.Second))
}

func TestDoubleClose(t *testing.T) {
	_, c := newTestPair(t)

	assert.Nil(t, c.Close())
	assert.Nil(t, c.Close())
	assert.True(t, c.IsClosed())
}

func TestCloseAbortsPendingExchange(t *testing.T) {
	s, c := newTestPair(t, WithTimeout(5*time.Second))

	s.DropNext(1)
	done := make(chan error, 1)
	go func() {
		_, err := c.ReadWords(context.Background(), 0, 1)
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, c.Close())

	select {
	case err := <-done:
		assert.IsType(t, ClientClosedError{}, err)
	case <-time.After(time.Second):
		t.Fatal("pending exchange was not aborted by Close")
	}
}

func TestConcurrentOperationsAreSerialized(t *testing.T) {
	ctx := context.Background()
	_, c := newTestPair(t)

	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		go func(i int) {
			addr := uint16(300 + i)
			if err := c.WriteWord(ctx, addr, uint16(i)); err != nil {
				errs <- err
				return
			}
			buf, err := c.ReadWords(ctx, addr, 1)
			if err == nil {
				if v, _ := DecodeWord(buf, 0, false); int(v) != i {
					err = fmt.Errorf("address %d: got %d", addr, v)
				}
			}
			errs <- err
		}(i)
	}
	for i := 0; i < 20; i++ {
		assert.NoError(t, <-errs)
	}
}

func TestNewClientRejectsInvalidEndpoint(t *testing.T) {
	var ae *ArgumentError

	_, err := NewClient(Endpoint{Host: "", Port: 9600})
	assert.True(t, errors.As(err, &ae))

	_, err = NewClient(Endpoint{Host: "127.0.0.1", Port: 0})
	assert.True(t, errors.As(err, &ae))

	_, err = NewEndpoint("127.0.0.1", 70000)
	assert.True(t, errors.As(err, &ae))

	e, err := NewEndpoint("192.168.250.1", 9600)
	assert.Nil(t, err)
	assert.Equal(t, "192.168.250.1:9600", e.String())
}

func TestInterceptorBasic(t *testing.T) {
	ctx := context.Background()
	_, c := newTestPair(t)

	// Track interceptor calls
	var calls []OperationType
	c.SetInterceptor(func(ic *InterceptorCtx) (interface{}, error) {
		calls = append(calls, ic.Info().Operation)
		return ic.Invoke(nil)
	})

	err := c.WriteWordArray(ctx, 100, []uint16{1, 2, 3})
	assert.Nil(t, err)

	_, err = c.ReadWords(ctx, 100, 3)
	assert.Nil(t, err)

	err = c.WriteText(ctx, 10, 12, "AB", false)
	assert.Nil(t, err)

	// WriteText is one operation even though it sends two frames.
	assert.Equal(t, []OperationType{OpWriteWordArray, OpReadWords, OpWriteText}, calls)
}

func TestInterceptorMetrics(t *testing.T) {
	ctx := context.Background()
	_, c := newTestPair(t)

	// Set up metrics collector
	metrics := NewMetricsCollector()
	c.SetInterceptor(metrics.Interceptor())

	c.WriteWords(ctx, 100, EncodeWords(1, 2, 3))
	c.ReadWords(ctx, 100, 3)
	c.ReadWords(ctx, 200, 5)
	c.ReadWords(ctx, 200, 0)

	read := metrics.GetStats(OpReadWords)
	assert.Equal(t, int64(3), read.Count)
	assert.Equal(t, int64(1), read.Errors)

	write := metrics.GetStats(OpWriteWords)
	assert.Equal(t, int64(1), write.Count)
	assert.Equal(t, int64(0), write.Errors)
}

func TestInterceptorChaining(t *testing.T) {
	ctx := context.Background()

	// Track execution order
	var order []string

	interceptor1 := func(ic *InterceptorCtx) (interface{}, error) {
		order = append(order, "interceptor1-before")
		result, err := ic.Invoke(nil)
		order = append(order, "interceptor1-after")
		return result, err
	}

	interceptor2 := func(ic *InterceptorCtx) (interface{}, error) {
		order = append(order, "interceptor2-before")
		result, err := ic.Invoke(nil)
		order = append(order, "interceptor2-after")
		return result, err
	}

	_, c := newTestPair(t, WithInterceptor(interceptor1, interceptor2))

	c.WriteWord(ctx, 100, 1)

	// Verify execution order
	assert.Equal(t, []string{
		"interceptor1-before",
		"interceptor2-before",
		"interceptor2-after",
		"interceptor1-after",
	}, order)
}

func TestInterceptorCanShortCircuit(t *testing.T) {
	ctx := context.Background()
	s, c := newTestPair(t)

	// Interceptor that blocks writes
	c.SetInterceptor(func(ic *InterceptorCtx) (interface{}, error) {
		if ic.Info().Operation == OpWriteWords {
			return nil, fmt.Errorf("writes are blocked")
		}
		return ic.Invoke(nil)
	})

	// Write should be blocked
	err := c.WriteWords(ctx, 100, EncodeWords(1, 2, 3))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "blocked")
	assert.Nil(t, s.LastRequest())

	// Read should work
	_, err = c.ReadWords(ctx, 100, 3)
	assert.Nil(t, err)
}

type traceKey struct{}

func TestInterceptorWithContext(t *testing.T) {
	ctx := context.Background()
	_, c := newTestPair(t)

	var capturedTraceID string

	c.SetInterceptor(func(ic *InterceptorCtx) (interface{}, error) {
		if id := ic.Context().Value(traceKey{}); id != nil {
			capturedTraceID = id.(string)
		}
		return ic.Invoke(nil)
	})

	// Perform operation with trace ID
	ctxWithTrace := context.WithValue(ctx, traceKey{}, "trace-12345")
	c.WriteWord(ctxWithTrace, 100, 1)

	// Verify trace ID was captured
	assert.Equal(t, "trace-12345", capturedTraceID)
}

func TestNopClient(t *testing.T) {
	ctx := context.Background()
	var c DataMemoryClient = NopClient{}

	buf, err := c.ReadWords(ctx, 0, 3)
	assert.Nil(t, err)
	assert.Equal(t, make([]byte, 6), buf)
	assert.Nil(t, c.WriteText(ctx, 0, 1, "x", false))
	assert.True(t, c.TestConnection(ctx, time.Second))
	assert.NotNil(t, c.Connectivity())
}
