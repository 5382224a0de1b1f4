package fins

import (
	"context"
	"time"
)

// WordReader reads a window of data memory.
type WordReader interface {
	ReadWords(ctx context.Context, address uint16, count uint16) ([]byte, error)
}

// WordWriter writes data memory.
type WordWriter interface {
	WriteWords(ctx context.Context, address uint16, data []byte) error
	WriteWord(ctx context.Context, address uint16, value uint16) error
	WriteWordArray(ctx context.Context, address uint16, values []uint16) error
	WriteText(ctx context.Context, startAddress, endAddress uint16, text string, swapBytes bool) error
	ZeroFill(ctx context.Context, startAddress, endAddress uint16) error
}

// ClientLifecycle controls.
type ClientLifecycle interface {
	TestConnection(ctx context.Context, timeout time.Duration) bool
	Connectivity() *ConnectivityState
	IsClosed() bool
	Close() error
}

// DataMemoryClient defines the public contract of Client for easier testing/mocking.
type DataMemoryClient interface {
	WordReader
	WordWriter
	ClientLifecycle
}

// Ensure Client implements the interface.
var _ DataMemoryClient = (*Client)(nil)
