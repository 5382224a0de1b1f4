package fins

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// PollHandler receives every window the poller reads. buf holds count*2 bytes
// and is owned by the handler.
type PollHandler func(ctx context.Context, buf []byte)

// Poller reads one data memory window on a fixed interval. Reads never
// overlap: a tick that arrives while a read is still running is skipped.
type Poller struct {
	reader   WordReader
	address  uint16
	count    uint16
	interval time.Duration
	handler  PollHandler
	logger   *zap.Logger
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithPollerLogger sets the poller logger. Default: zap.NewNop().
func WithPollerLogger(l *zap.Logger) PollerOption {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPoller creates a poller reading count words at address every interval.
func NewPoller(reader WordReader, address, count uint16, interval time.Duration, handler PollHandler, opts ...PollerOption) (*Poller, error) {
	if reader == nil {
		return nil, &ArgumentError{Arg: "reader", Reason: "must not be nil"}
	}
	if handler == nil {
		return nil, &ArgumentError{Arg: "handler", Reason: "must not be nil"}
	}
	if count == 0 {
		return nil, &ArgumentError{Arg: "count", Reason: "must be at least 1"}
	}
	if interval <= 0 {
		return nil, &ArgumentError{Arg: "interval", Reason: "must be positive"}
	}
	p := &Poller{
		reader:   reader,
		address:  address,
		count:    count,
		interval: interval,
		handler:  handler,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("poller")
	return p, nil
}

// Run polls until ctx is done or the client is closed. Read failures are
// logged and polling continues; the client already records them in its
// connectivity state.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("polling started",
		zap.Uint16("address", p.address),
		zap.Uint16("count", p.count),
		zap.Duration("interval", p.interval),
	)
	for {
		if err := p.poll(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			p.logger.Info("polling stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (p *Poller) poll(ctx context.Context) error {
	buf, err := p.reader.ReadWords(ctx, p.address, p.count)
	switch {
	case err == nil:
		p.handler(ctx, buf)
		return nil
	case errors.As(err, new(ClientClosedError)):
		return err
	case ctx.Err() != nil:
		return nil
	default:
		p.logger.Warn("poll failed", zap.Uint16("address", p.address), zap.Error(err))
		return nil
	}
}
