package fins

import (
	"encoding/binary"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"
)

const (
	DM_AREA_WORDS      = 32768 // Data Memory words served by the simulator
	SERVER_BUFFER_SIZE = 4096  // UDP receive buffer size
)

type serverConfig struct {
	logger *zap.Logger
}

// ServerOption configures the PLC simulator.
type ServerOption func(*serverConfig)

// WithServerLogger sets the simulator logger.
func WithServerLogger(l *zap.Logger) ServerOption {
	return func(cfg *serverConfig) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// Server FINS/UDP PLC simulator serving a data memory area.
// It answers memory area read and write commands for area 0x82.
type Server struct {
	conn   *net.UDPConn
	logger *zap.Logger

	memMu   sync.RWMutex
	dmarea  []byte
	endCode uint16 // forced completion code for writes, 0 = normal
	drop    int    // requests to swallow without answering
	last    []byte // last request frame received

	closed     bool
	closeMutex sync.RWMutex
	errChan    chan error
	done       chan struct{}
}

// NewPLCSimulator starts a simulator listening on addr. Use port 0 to pick a
// free port and Addr to find it.
func NewPLCSimulator(addr *net.UDPAddr, opts ...ServerOption) (*Server, error) {
	cfg := serverConfig{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}

	s := &Server{
		conn:    conn,
		logger:  cfg.logger,
		dmarea:  make([]byte, DM_AREA_WORDS*2),
		errChan: make(chan error, 1),
		done:    make(chan struct{}),
	}
	go s.udpLoop()
	return s, nil
}

// Addr returns the address the simulator listens on.
func (s *Server) Addr() *net.UDPAddr {
	return s.conn.LocalAddr().(*net.UDPAddr)
}

// Endpoint returns the simulator address as a client Endpoint.
func (s *Server) Endpoint() Endpoint {
	a := s.Addr()
	return Endpoint{Host: a.IP.String(), Port: a.Port}
}

// IsClosed returns true if the server has been closed
func (s *Server) IsClosed() bool {
	s.closeMutex.RLock()
	defer s.closeMutex.RUnlock()
	return s.closed
}

// Err returns the error channel for server errors
// Errors from the server loop are sent to this channel
func (s *Server) Err() <-chan error {
	return s.errChan
}

// Close closes the FINS server
func (s *Server) Close() error {
	s.closeMutex.Lock()
	if s.closed {
		s.closeMutex.Unlock()
		return nil
	}
	s.closed = true
	s.closeMutex.Unlock()

	close(s.done)
	return s.conn.Close()
}

// ForceEndCode makes every following write answer with code. Zero restores
// normal completion.
func (s *Server) ForceEndCode(code uint16) {
	s.memMu.Lock()
	s.endCode = code
	s.memMu.Unlock()
}

// DropNext swallows the next n requests without answering.
func (s *Server) DropNext(n int) {
	s.memMu.Lock()
	s.drop = n
	s.memMu.Unlock()
}

// LastRequest returns a copy of the last frame received.
func (s *Server) LastRequest() []byte {
	s.memMu.RLock()
	defer s.memMu.RUnlock()
	return append([]byte(nil), s.last...)
}

// Words returns a copy of count words starting at address.
func (s *Server) Words(address uint16, count uint16) []byte {
	data, _ := s.readDMWords(address, count)
	return data
}

// SetWords stores data (big-endian words) at address.
func (s *Server) SetWords(address uint16, data []byte) error {
	if len(data)%2 != 0 {
		return fmt.Errorf("data length %d is not word aligned", len(data))
	}
	if code := s.writeDMWords(address, uint16(len(data)/2), data); code != EndCodeNormalCompletion {
		return fmt.Errorf("write rejected, end code 0x%04X", code)
	}
	return nil
}

// readDMWords reads word data from the simulator's DM area.
// Returns EndCodeAddressRangeExceeded if the requested range is invalid.
func (s *Server) readDMWords(address uint16, count uint16) ([]byte, uint16) {
	if int(address)+int(count) > DM_AREA_WORDS {
		return nil, EndCodeAddressRangeExceeded
	}
	start, end := int(address)*2, (int(address)+int(count))*2
	s.memMu.RLock()
	data := append([]byte(nil), s.dmarea[start:end]...)
	s.memMu.RUnlock()
	return data, EndCodeNormalCompletion
}

// writeDMWords writes word data into the simulator's DM area.
// Returns EndCodeAddressRangeExceeded if the requested range is invalid.
func (s *Server) writeDMWords(address uint16, count uint16, payload []byte) uint16 {
	if int(address)+int(count) > DM_AREA_WORDS {
		return EndCodeAddressRangeExceeded
	}
	if len(payload) < int(count)*2 {
		return EndCodeCommandFormatError
	}
	start := int(address) * 2
	s.memMu.Lock()
	copy(s.dmarea[start:start+int(count)*2], payload)
	s.memMu.Unlock()
	return EndCodeNormalCompletion
}

// intercept records the frame and reports whether it should be answered.
func (s *Server) intercept(frame []byte) (answer bool, forced uint16) {
	s.memMu.Lock()
	defer s.memMu.Unlock()
	s.last = append(s.last[:0], frame...)
	if s.drop > 0 {
		s.drop--
		return false, 0
	}
	return true, s.endCode
}

func (s *Server) udpLoop() {
	defer close(s.errChan)

	var buf [SERVER_BUFFER_SIZE]byte
	for {
		select {
		case <-s.done:
			return
		default:
		}

		rlen, remote, err := s.conn.ReadFromUDP(buf[:])
		if err != nil {
			if s.IsClosed() {
				return
			}
			s.errChan <- fmt.Errorf("server read error: %w", err)
			return
		}

		answer, forced := s.intercept(buf[:rlen])
		if !answer {
			s.logger.Debug("request dropped", zap.Stringer("remote", remote))
			continue
		}

		req, err := decodeRequest(buf[:rlen])
		if err != nil {
			s.logger.Debug("malformed request", zap.Stringer("remote", remote), zap.Error(err))
			continue
		}
		resp := s.handler(req, forced)

		if _, err = s.conn.WriteToUDP(encodeResponse(resp), remote); err != nil {
			if s.IsClosed() {
				return
			}
			s.errChan <- fmt.Errorf("server write error: %w", err)
			return
		}
	}
}

// handler works with the DM area only, in whole words
func (s *Server) handler(r request, forced uint16) response {
	var endCode uint16
	data := []byte{}
	switch r.commandCode {
	case CommandCodeMemoryAreaRead, CommandCodeMemoryAreaWrite:
		if len(r.data) < FINS_MEMORY_ADDR_SIZE+FINS_ITEM_COUNT_SIZE {
			endCode = EndCodeCommandFormatError
			break
		}
		memAddr := decodeMemoryAddress(r.data[:FINS_MEMORY_ADDR_SIZE])
		ic := binary.BigEndian.Uint16(r.data[4:6]) // Item count

		if memAddr.memoryArea != MemoryAreaDMWord {
			endCode = EndCodeAreaClassificationMissing
			break
		}
		if r.commandCode == CommandCodeMemoryAreaRead {
			data, endCode = s.readDMWords(memAddr.address, ic)
		} else if forced != EndCodeNormalCompletion {
			endCode = forced
		} else {
			endCode = s.writeDMWords(memAddr.address, ic, r.data[6:])
		}

	default:
		endCode = EndCodeNotSupportedByModelVersion
	}
	return response{defaultResponseHeader(r.header), r.commandCode, endCode, data}
}
