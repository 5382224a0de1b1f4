package fins

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Client FINS/UDP client for the data memory of one PLC.
//
// Every operation blocks until the PLC answers, the timeout elapses or ctx is
// done. Only one request is ever in flight: concurrent calls are serialized.
// The socket is dialled on first use and replaced after any timeout or
// network failure. Close releases it; after that every call fails with
// ClientClosedError.
type Client struct {
	endpoint    Endpoint
	transport   *udpTransport
	exchangeMu  sync.Mutex // one request in flight
	timeout     time.Duration
	state       *ConnectivityState
	logger      *zap.Logger
	interceptor Interceptor
	plugins     pluginManager
	closeOnce   sync.Once
}

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	timeout     time.Duration
	state       *ConnectivityState
	logger      *zap.Logger
	interceptor Interceptor
	local       *net.UDPAddr
}

// WithTimeout sets how long an operation waits for the response.
// Default value: 5s.
func WithTimeout(t time.Duration) Option {
	return func(cfg *clientConfig) {
		if t > 0 {
			cfg.timeout = t
		}
	}
}

// WithConnectivityState shares an existing state cell with the client,
// typically the one status observers already hold.
func WithConnectivityState(s *ConnectivityState) Option {
	return func(cfg *clientConfig) {
		if s != nil {
			cfg.state = s
		}
	}
}

// WithLogger sets the logger. Default: zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(cfg *clientConfig) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// WithInterceptor installs interceptors, chained in the given order.
func WithInterceptor(interceptors ...Interceptor) Option {
	return func(cfg *clientConfig) {
		cfg.interceptor = ChainInterceptors(interceptors...)
	}
}

// WithLocalAddr binds the socket to a fixed local address.
//
// With a fixed port the socket replaced after a timeout reopens on that same
// port, so a late reply to the timed-out request can still arrive. Queued
// datagrams are drained before the next send and replies whose command code
// or length do not fit the request are dropped, but a late reply to an
// identically shaped read cannot be told apart from the real answer. Leave
// the port at 0 unless the PLC requires a fixed source port.
func WithLocalAddr(addr *net.UDPAddr) Option {
	return func(cfg *clientConfig) {
		cfg.local = addr
	}
}

// NewClient creates a client for endpoint. No socket is opened until the
// first operation.
func NewClient(endpoint Endpoint, opts ...Option) (*Client, error) {
	cfg := clientConfig{
		timeout: DEFAULT_TIMEOUT,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.state == nil {
		cfg.state = NewConnectivityState()
	}

	remote, err := endpoint.resolve()
	if err != nil {
		return nil, err
	}

	logger := cfg.logger.With(zap.String("plc", endpoint.String()))
	c := &Client{
		endpoint:    endpoint,
		transport:   newUDPTransport(cfg.local, remote, logger),
		timeout:     cfg.timeout,
		state:       cfg.state,
		logger:      logger,
		interceptor: cfg.interceptor,
	}
	return c, nil
}

// Endpoint returns the PLC endpoint.
func (c *Client) Endpoint() Endpoint {
	return c.endpoint
}

// Connectivity returns the state cell this client updates.
func (c *Client) Connectivity() *ConnectivityState {
	return c.state
}

// SetInterceptor replaces the interceptor chain.
// Note: This should be called before starting operations.
func (c *Client) SetInterceptor(interceptor Interceptor) {
	c.interceptor = interceptor
}

// Use registers plugins.
func (c *Client) Use(plugins ...Plugin) error {
	return c.plugins.use(c, plugins...)
}

// IsClosed returns true if the client has been closed
func (c *Client) IsClosed() bool {
	return c.transport.isClosed()
}

// Close releases the socket and marks the PLC unreachable. It aborts an
// exchange that is waiting for a response. Safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.transport.Close()
		c.settle(ClientClosedError{})
		c.logger.Debug("client closed")
	})
	return err
}

// ReadWords reads count words of data memory starting at address and returns
// the raw count*2 bytes.
func (c *Client) ReadWords(ctx context.Context, address uint16, count uint16) ([]byte, error) {
	info := &InterceptorInfo{Operation: OpReadWords, Address: address, Count: count}
	r, err := c.invoke(ctx, info, func(ctx context.Context) (interface{}, error) {
		return c.readWords(ctx, address, count)
	})
	if err != nil {
		return nil, err
	}
	return r.([]byte), nil
}

// WriteWords writes data, a non-empty word-aligned byte slice, starting at
// address.
func (c *Client) WriteWords(ctx context.Context, address uint16, data []byte) error {
	info := &InterceptorInfo{Operation: OpWriteWords, Address: address, Count: uint16(len(data) / 2), Data: data}
	_, err := c.invoke(ctx, info, func(ctx context.Context) (interface{}, error) {
		return nil, c.writeWords(ctx, address, data)
	})
	return err
}

// WriteWord writes a single word.
func (c *Client) WriteWord(ctx context.Context, address uint16, value uint16) error {
	info := &InterceptorInfo{Operation: OpWriteWord, Address: address, Count: 1, Data: []uint16{value}}
	_, err := c.invoke(ctx, info, func(ctx context.Context) (interface{}, error) {
		return nil, c.writeWords(ctx, address, EncodeWords(value))
	})
	return err
}

// WriteWordArray writes values to consecutive words starting at address.
func (c *Client) WriteWordArray(ctx context.Context, address uint16, values []uint16) error {
	info := &InterceptorInfo{Operation: OpWriteWordArray, Address: address, Count: uint16(len(values)), Data: values}
	_, err := c.invoke(ctx, info, func(ctx context.Context) (interface{}, error) {
		if len(values) == 0 {
			return nil, &ArgumentError{Arg: "values", Reason: "must not be empty"}
		}
		return nil, c.writeWords(ctx, address, EncodeWords(values...))
	})
	return err
}

// WriteText clears startAddress..endAddress (inclusive) and writes text into
// it as ASCII, two characters per word. See EncodeText for truncation,
// padding and byte swapping.
func (c *Client) WriteText(ctx context.Context, startAddress, endAddress uint16, text string, swapBytes bool) error {
	data, err := EncodeText(startAddress, endAddress, text, swapBytes)
	if err != nil {
		return err
	}
	words, _ := windowWords(startAddress, endAddress)
	info := &InterceptorInfo{Operation: OpWriteText, Address: startAddress, EndAddress: endAddress, Count: uint16(words), Data: text}
	_, err = c.invoke(ctx, info, func(ctx context.Context) (interface{}, error) {
		if err := c.writeWords(ctx, startAddress, make([]byte, words*2)); err != nil {
			return nil, err
		}
		return nil, c.writeWords(ctx, startAddress, data)
	})
	return err
}

// ZeroFill writes zero to every word of startAddress..endAddress (inclusive).
func (c *Client) ZeroFill(ctx context.Context, startAddress, endAddress uint16) error {
	words, err := windowWords(startAddress, endAddress)
	if err != nil {
		return err
	}
	info := &InterceptorInfo{Operation: OpZeroFill, Address: startAddress, EndAddress: endAddress, Count: uint16(words)}
	_, err = c.invoke(ctx, info, func(ctx context.Context) (interface{}, error) {
		return nil, c.writeWords(ctx, startAddress, make([]byte, words*2))
	})
	return err
}

// TestConnection reads D0 and reports whether the PLC answered within
// timeout (default 2s when zero). It never returns an error. The read
// bypasses interceptors so address or read-only guards cannot veto it.
func (c *Client) TestConnection(ctx context.Context, timeout time.Duration) bool {
	if c.IsClosed() {
		return false
	}
	if timeout <= 0 {
		timeout = DEFAULT_TEST_TIMEOUT
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := c.readWords(ctx, 0, 1)
	return err == nil
}

func (c *Client) readWords(ctx context.Context, address uint16, count uint16) ([]byte, error) {
	if count == 0 {
		return nil, &ArgumentError{Arg: "count", Reason: "must be at least 1"}
	}
	expected := RESPONSE_DATA_INDEX + int(count)*2
	return c.roundTrip(ctx, BuildReadCommand(address, count), expected, func(resp []byte) ([]byte, error) {
		return ParseReadResponse(resp, count)
	})
}

func (c *Client) writeWords(ctx context.Context, address uint16, data []byte) error {
	command, err := BuildWriteCommand(address, data)
	if err != nil {
		return err
	}
	_, err = c.roundTrip(ctx, command, RESPONSE_DATA_INDEX, func(resp []byte) ([]byte, error) {
		return nil, ParseWriteResponse(resp)
	})
	return err
}

// roundTrip performs one serialized exchange, validates the response with
// parse and records the outcome in the connectivity state.
func (c *Client) roundTrip(ctx context.Context, command []byte, expected int, parse func([]byte) ([]byte, error)) ([]byte, error) {
	if c.IsClosed() {
		return nil, ClientClosedError{}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.exchangeMu.Lock()
	resp, err := c.transport.exchange(ctx, command, expected, c.timeout)
	c.exchangeMu.Unlock()

	if err == nil {
		var data []byte
		data, err = parse(resp)
		if err == nil {
			c.settle(nil)
			return data, nil
		}
		var pe *ProtocolError
		if errors.As(err, &pe) {
			pe.Endpoint = c.endpoint.String()
		}
	}

	var closed ClientClosedError
	if errors.As(err, &closed) {
		return nil, err
	}

	var te *TimeoutError
	if errors.As(err, &te) {
		c.logger.Warn("response timeout, socket replaced", zap.Duration("timeout", te.Wait))
	} else {
		c.logger.Debug("exchange failed", zap.Int("sent", len(command)), zap.Int("received", len(resp)), zap.Error(err))
	}
	c.settle(err)
	return nil, err
}

// settle records an outcome: reachable on nil, unreachable otherwise. Both
// flags change together. Plugins hear about transitions only.
func (c *Client) settle(err error) {
	if !c.state.Set(err == nil) {
		return
	}
	for _, p := range c.plugins.connectionPlugins() {
		var hookErr error
		if err == nil {
			hookErr = p.OnConnected(c)
		} else {
			hookErr = p.OnDisconnected(c, err)
		}
		if hookErr != nil {
			c.logger.Warn("connection plugin failed", zap.String("plugin", p.Name()), zap.Error(hookErr))
		}
	}
}

func (c *Client) invoke(ctx context.Context, info *InterceptorInfo, invoker Invoker) (interface{}, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.interceptor == nil {
		return invoker(ctx)
	}
	return c.interceptor(&InterceptorCtx{ctx: ctx, info: info, invoker: invoker})
}

// String implements fmt.Stringer.
func (c *Client) String() string {
	return fmt.Sprintf("fins.Client(%s)", c.endpoint)
}
