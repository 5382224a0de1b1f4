package fins

import (
	"sync"
	"time"
)

// ConnectionEventType describes the type of connection event.
type ConnectionEventType string

const (
	ConnectionEventReachable   ConnectionEventType = "reachable"
	ConnectionEventUnreachable ConnectionEventType = "unreachable"
)

// ConnectionEvent is emitted whenever the client's connectivity flips.
type ConnectionEvent struct {
	Time      time.Time
	Type      ConnectionEventType
	Endpoint  string
	Err       error         // Set when the PLC became unreachable
	Downtime  time.Duration // Time spent unreachable (on reachable)
	Reachable bool          // Connectivity after the event
}

// ConnectionStats contains snapshot metrics about connection health.
type ConnectionStats struct {
	Reachable         bool
	LastReachable     time.Time
	LastUnreachable   time.Time
	CurrentDowntime   time.Duration
	TotalDowntime     time.Duration
	Outages           int
	LastDisconnectErr error
}

// ConnectionWatchdog is a plugin that tracks PLC uptime/downtime from the
// client's connectivity transitions and emits events.
// Hooks are non-blocking; events are dropped if the channel buffer is full.
type ConnectionWatchdog struct {
	events chan ConnectionEvent

	mu sync.RWMutex

	// guarded by mu
	reachable       bool
	lastReachable   time.Time
	lastUnreachable time.Time
	downtimeStart   time.Time
	totalDowntime   time.Duration
	outages         int
	lastErr         error
}

// NewConnectionWatchdog creates a new watchdog plugin.
// eventBuffer controls the channel buffer size for Events(); use 0 for the default of 16.
func NewConnectionWatchdog(eventBuffer int) *ConnectionWatchdog {
	if eventBuffer <= 0 {
		eventBuffer = 16
	}
	return &ConnectionWatchdog{
		events: make(chan ConnectionEvent, eventBuffer),
	}
}

// Name implements Plugin.
func (w *ConnectionWatchdog) Name() string { return "connection_watchdog" }

// Initialize implements Plugin. The watchdog starts from the client's current
// connectivity; without a client it starts unreachable.
func (w *ConnectionWatchdog) Initialize(c *Client) error {
	now := time.Now()
	reachable := c != nil && c.Connectivity().PLC()

	w.mu.Lock()
	w.reachable = reachable
	if reachable {
		w.lastReachable = now
		w.downtimeStart = time.Time{}
	} else {
		w.downtimeStart = now
	}
	w.mu.Unlock()
	return nil
}

// OnConnected implements ConnectionPlugin.
func (w *ConnectionWatchdog) OnConnected(c *Client) error {
	now := time.Now()
	var downtime time.Duration

	w.mu.Lock()
	if !w.downtimeStart.IsZero() {
		downtime = now.Sub(w.downtimeStart)
		w.totalDowntime += downtime
		w.downtimeStart = time.Time{}
	}
	w.reachable = true
	w.lastReachable = now
	w.mu.Unlock()

	w.emit(ConnectionEvent{
		Time:      now,
		Type:      ConnectionEventReachable,
		Endpoint:  endpointOf(c),
		Downtime:  downtime,
		Reachable: true,
	})
	return nil
}

// OnDisconnected implements ConnectionPlugin.
func (w *ConnectionWatchdog) OnDisconnected(c *Client, err error) error {
	now := time.Now()

	w.mu.Lock()
	w.reachable = false
	w.lastUnreachable = now
	w.downtimeStart = now
	w.outages++
	w.lastErr = err
	w.mu.Unlock()

	w.emit(ConnectionEvent{
		Time:      now,
		Type:      ConnectionEventUnreachable,
		Endpoint:  endpointOf(c),
		Err:       err,
		Reachable: false,
	})
	return nil
}

// Events returns a read-only channel of connection events.
func (w *ConnectionWatchdog) Events() <-chan ConnectionEvent {
	return w.events
}

// Stats returns a snapshot of connection health metrics.
func (w *ConnectionWatchdog) Stats() ConnectionStats {
	w.mu.RLock()
	defer w.mu.RUnlock()

	stats := ConnectionStats{
		Reachable:         w.reachable,
		LastReachable:     w.lastReachable,
		LastUnreachable:   w.lastUnreachable,
		TotalDowntime:     w.totalDowntime,
		Outages:           w.outages,
		LastDisconnectErr: w.lastErr,
	}
	if !w.reachable && !w.downtimeStart.IsZero() {
		stats.CurrentDowntime = time.Since(w.downtimeStart)
	}
	return stats
}

func (w *ConnectionWatchdog) emit(evt ConnectionEvent) {
	select {
	case w.events <- evt:
	default:
		// Drop if buffer is full to avoid blocking hooks.
	}
}

func endpointOf(c *Client) string {
	if c == nil {
		return ""
	}
	return c.Endpoint().String()
}

// Ensure ConnectionWatchdog satisfies the interfaces.
var _ ConnectionPlugin = (*ConnectionWatchdog)(nil)
