package fins

import (
	"context"
	"time"
)

// NopClient implements DataMemoryClient with no-op behavior.
// Reads return zeroed windows. Useful for tests or placeholders where a real
// PLC connection is not required.
type NopClient struct {
	State *ConnectivityState
}

func (NopClient) ReadWords(_ context.Context, _ uint16, count uint16) ([]byte, error) {
	return make([]byte, int(count)*2), nil
}
func (NopClient) WriteWords(context.Context, uint16, []byte) error              { return nil }
func (NopClient) WriteWord(context.Context, uint16, uint16) error               { return nil }
func (NopClient) WriteWordArray(context.Context, uint16, []uint16) error        { return nil }
func (NopClient) WriteText(context.Context, uint16, uint16, string, bool) error { return nil }
func (NopClient) ZeroFill(context.Context, uint16, uint16) error                { return nil }
func (NopClient) TestConnection(context.Context, time.Duration) bool            { return true }
func (NopClient) IsClosed() bool                                                { return false }
func (NopClient) Close() error                                                  { return nil }

func (n NopClient) Connectivity() *ConnectivityState {
	if n.State == nil {
		return NewConnectivityState()
	}
	return n.State
}

var _ DataMemoryClient = NopClient{}
