package fins

// Header A FINS frame header
type Header struct {
	messageType      uint8
	responseRequired bool
	src              FinsAddress
	dst              FinsAddress
	serviceID        byte
	gatewayCount     uint8
}

const (
	// MessageTypeCommand Command message type
	MessageTypeCommand uint8 = iota

	// MessageTypeResponse Response message type
	MessageTypeResponse
)

// Direct local connection: destination is node 0 of the local network, the
// host is node 1. Neither side is routed through a gateway.
var (
	directDestination = FinsAddress{Network: 0x00, Node: 0x00, Unit: 0x00}
	directSource      = FinsAddress{Network: 0x00, Node: 0x01, Unit: 0x00}
)

func defaultHeader(messageType uint8, responseRequired bool, src FinsAddress, dst FinsAddress, serviceID byte) Header {
	h := Header{}
	h.messageType = messageType
	h.responseRequired = responseRequired
	h.gatewayCount = DEFAULT_GATEWAY_COUNT
	h.src = src
	h.dst = dst
	h.serviceID = serviceID
	return h
}

// directCommandHeader is identical for every request. The service id is a
// constant and cannot correlate concurrent requests.
func directCommandHeader() Header {
	return defaultHeader(MessageTypeCommand, true, directSource, directDestination, DEFAULT_SERVICE_ID)
}

func defaultResponseHeader(commandHeader Header) Header {
	return defaultHeader(MessageTypeResponse, false, commandHeader.dst, commandHeader.src, commandHeader.serviceID)
}
