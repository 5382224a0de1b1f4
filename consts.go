package fins

import "time"

const (
	// CommandCodeMemoryAreaRead Memory area read
	CommandCodeMemoryAreaRead uint16 = 0x0101

	// CommandCodeMemoryAreaWrite Memory area write
	CommandCodeMemoryAreaWrite uint16 = 0x0102
)

// MemoryAreaDMWord Data memory, word access. The only area this client addresses.
const MemoryAreaDMWord byte = 0x82

const (
	EndCodeNormalCompletion           uint16 = 0x0000
	EndCodeNotSupportedByModelVersion uint16 = 0x0401
	EndCodeAreaClassificationMissing  uint16 = 0x1101
	EndCodeAddressRangeExceeded       uint16 = 0x1103
	EndCodeCommandFormatError         uint16 = 0x1001
)

const (
	DEFAULT_TIMEOUT       = 5 * time.Second
	DEFAULT_TEST_TIMEOUT  = 2 * time.Second
	READ_BUFFER_SIZE      = 65507 // largest UDP payload over IPv4
	DEFAULT_SERVICE_ID    = 0x1a
	DEFAULT_GATEWAY_COUNT = 2
	DRAIN_WAIT            = time.Millisecond // quiet period that ends a drain
)
