package fins

import "sync"

// Connectivity is a snapshot of the two reachability flags.
type Connectivity struct {
	PLC    bool // the PLC answered the last exchange
	Device bool // the device behind the PLC is assumed reachable with it
}

// ConnectivityState holds the PLC and downstream-device reachability flags.
// Both flags are always written together; the last writer wins. One instance
// is usually shared between the client and any status observers.
// It is safe for concurrent use.
type ConnectivityState struct {
	mu     sync.RWMutex
	plc    bool
	device bool
}

// NewConnectivityState returns a state with both flags unreachable.
func NewConnectivityState() *ConnectivityState {
	return &ConnectivityState{}
}

// Set writes both flags and reports whether either changed.
func (s *ConnectivityState) Set(reachable bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.plc != reachable || s.device != reachable
	s.plc = reachable
	s.device = reachable
	return changed
}

// PLC reports whether the PLC is reachable.
func (s *ConnectivityState) PLC() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.plc
}

// Device reports whether the downstream device is reachable.
func (s *ConnectivityState) Device() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.device
}

// Snapshot returns both flags read under one lock.
func (s *ConnectivityState) Snapshot() Connectivity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Connectivity{PLC: s.plc, Device: s.device}
}
