package fins

import (
	"encoding/binary"
	"fmt"
)

const (
	// FINS protocol frame structure constants
	FINS_HEADER_SIZE        = 10 // FINS header is always 10 bytes
	FINS_COMMAND_CODE_SIZE  = 2  // Command code field size
	FINS_END_CODE_SIZE      = 2  // End code field size
	FINS_MEMORY_ADDR_SIZE   = 4  // Memory address field size
	FINS_ITEM_COUNT_SIZE    = 2  // Item count field size
	FINS_READ_CMD_MIN_SIZE  = 8  // Minimum read command size
	FINS_WRITE_CMD_MIN_SIZE = 8  // Minimum write command size

	// READ_REQUEST_SIZE is the size of a complete read frame.
	READ_REQUEST_SIZE = FINS_HEADER_SIZE + FINS_READ_CMD_MIN_SIZE

	// ICF (Information Control Field) byte offsets
	ICF_INDEX               = 0
	GATEWAY_COUNT_INDEX     = 2
	DST_NETWORK_INDEX       = 3
	DST_NODE_INDEX          = 4
	DST_UNIT_INDEX          = 5
	SRC_NETWORK_INDEX       = 6
	SRC_NODE_INDEX          = 7
	SRC_UNIT_INDEX          = 8
	SERVICE_ID_INDEX        = 9
	COMMAND_CODE_INDEX      = 10
	RESPONSE_END_CODE_INDEX = 12
	RESPONSE_DATA_INDEX     = 14
)

// request A FINS command request
type request struct {
	header      Header
	commandCode uint16
	data        []byte
}

// response A FINS command response
type response struct {
	header      Header
	commandCode uint16
	endCode     uint16
	data        []byte
}

// memoryAddress A plc memory address to do a work
type memoryAddress struct {
	memoryArea byte
	address    uint16
	bitOffset  byte
}

func memAddr(address uint16) memoryAddress {
	return memoryAddress{MemoryAreaDMWord, address, 0}
}

// BuildReadCommand returns the 18-byte frame reading itemCount words of data
// memory starting at address. Only integer width is checked; the caller keeps
// itemCount*2 within what downstream buffers accept.
func BuildReadCommand(address uint16, itemCount uint16) []byte {
	frame := make([]byte, 0, READ_REQUEST_SIZE)
	frame = append(frame, encodeHeader(directCommandHeader())...)
	return append(frame, readCommand(memAddr(address), itemCount)...)
}

// BuildWriteCommand returns the frame writing data to data memory starting at
// address. data must be non-empty and word aligned.
func BuildWriteCommand(address uint16, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, &ArgumentError{Arg: "data", Reason: "must not be empty"}
	}
	if len(data)%2 != 0 {
		return nil, &ArgumentError{Arg: "data", Reason: fmt.Sprintf("length %d is not word aligned", len(data))}
	}
	if len(data)/2 > 0xFFFF {
		return nil, &ArgumentError{Arg: "data", Reason: fmt.Sprintf("%d words exceed a single frame", len(data)/2)}
	}
	frame := make([]byte, 0, READ_REQUEST_SIZE+len(data))
	frame = append(frame, encodeHeader(directCommandHeader())...)
	return append(frame, writeCommand(memAddr(address), uint16(len(data)/2), data)...), nil
}

// ParseReadResponse validates a read response and returns its payload.
func ParseReadResponse(resp []byte, itemCount uint16) ([]byte, error) {
	dataLength := int(itemCount) * 2
	if len(resp) < RESPONSE_DATA_INDEX+dataLength {
		return nil, &ProtocolError{Reason: fmt.Sprintf("response size (%d) is too small for requested data (%d bytes)",
			len(resp), dataLength)}
	}
	return resp[RESPONSE_DATA_INDEX : RESPONSE_DATA_INDEX+dataLength], nil
}

// ParseWriteResponse validates a write response.
func ParseWriteResponse(resp []byte) error {
	if len(resp) < RESPONSE_DATA_INDEX {
		return &ProtocolError{Reason: fmt.Sprintf("response from PLC is too short (%d bytes)", len(resp))}
	}
	endCode := binary.BigEndian.Uint16(resp[RESPONSE_END_CODE_INDEX : RESPONSE_END_CODE_INDEX+FINS_END_CODE_SIZE])
	if endCode != EndCodeNormalCompletion {
		return &ProtocolError{EndCode: endCode, HasCode: true}
	}
	return nil
}

// answers reports whether resp can be the reply to command. It must echo the
// command code and be either exactly expected bytes long or a bare end code
// without data, which the parsers report as errors.
func answers(command, resp []byte, expected int) bool {
	if len(resp) < COMMAND_CODE_INDEX+FINS_COMMAND_CODE_SIZE {
		return true
	}
	if len(resp) != expected && len(resp) > RESPONSE_DATA_INDEX {
		return false
	}
	return binary.BigEndian.Uint16(resp[COMMAND_CODE_INDEX:]) == binary.BigEndian.Uint16(command[COMMAND_CODE_INDEX:])
}

func readCommand(memoryAddr memoryAddress, itemCount uint16) []byte {
	commandData := make([]byte, FINS_COMMAND_CODE_SIZE, FINS_READ_CMD_MIN_SIZE)
	binary.BigEndian.PutUint16(commandData[0:FINS_COMMAND_CODE_SIZE], CommandCodeMemoryAreaRead)
	commandData = append(commandData, encodeMemoryAddress(memoryAddr)...)
	commandData = append(commandData, []byte{0, 0}...)
	binary.BigEndian.PutUint16(commandData[6:8], itemCount)
	return commandData
}

func writeCommand(memoryAddr memoryAddress, itemCount uint16, bytes []byte) []byte {
	commandData := make([]byte, FINS_COMMAND_CODE_SIZE, FINS_WRITE_CMD_MIN_SIZE+len(bytes))
	binary.BigEndian.PutUint16(commandData[0:FINS_COMMAND_CODE_SIZE], CommandCodeMemoryAreaWrite)
	commandData = append(commandData, encodeMemoryAddress(memoryAddr)...)
	commandData = append(commandData, []byte{0, 0}...)
	binary.BigEndian.PutUint16(commandData[6:8], itemCount)
	commandData = append(commandData, bytes...)
	return commandData
}

func encodeMemoryAddress(memoryAddr memoryAddress) []byte {
	bytes := make([]byte, FINS_MEMORY_ADDR_SIZE)
	bytes[0] = memoryAddr.memoryArea
	binary.BigEndian.PutUint16(bytes[1:3], memoryAddr.address)
	bytes[3] = memoryAddr.bitOffset
	return bytes
}

func decodeMemoryAddress(data []byte) memoryAddress {
	return memoryAddress{data[0], binary.BigEndian.Uint16(data[1:3]), data[3]}
}

func decodeRequest(bytes []byte) (request, error) {
	if len(bytes) < FINS_HEADER_SIZE+FINS_COMMAND_CODE_SIZE {
		return request{}, fmt.Errorf("request too short: %d bytes", len(bytes))
	}
	return request{
		decodeHeader(bytes[0:FINS_HEADER_SIZE]),
		binary.BigEndian.Uint16(bytes[COMMAND_CODE_INDEX : COMMAND_CODE_INDEX+FINS_COMMAND_CODE_SIZE]),
		bytes[COMMAND_CODE_INDEX+FINS_COMMAND_CODE_SIZE:],
	}, nil
}

func encodeResponse(resp response) []byte {
	responseSize := FINS_COMMAND_CODE_SIZE + FINS_END_CODE_SIZE
	bytes := make([]byte, responseSize, responseSize+len(resp.data))
	binary.BigEndian.PutUint16(bytes[0:FINS_COMMAND_CODE_SIZE], resp.commandCode)
	binary.BigEndian.PutUint16(bytes[FINS_COMMAND_CODE_SIZE:responseSize], resp.endCode)
	bytes = append(bytes, resp.data...)
	bh := encodeHeader(resp.header)
	bh = append(bh, bytes...)
	return bh
}

const (
	icfBridgesBit          byte = 7
	icfMessageTypeBit      byte = 6
	icfResponseRequiredBit byte = 0
)

func decodeHeader(bytes []byte) Header {
	header := Header{}
	icf := bytes[ICF_INDEX]
	if icf&(1<<icfResponseRequiredBit) == 0 {
		header.responseRequired = true
	}
	if icf&(1<<icfMessageTypeBit) == 0 {
		header.messageType = MessageTypeCommand
	} else {
		header.messageType = MessageTypeResponse
	}
	header.gatewayCount = bytes[GATEWAY_COUNT_INDEX]
	header.dst = FinsAddress{bytes[DST_NETWORK_INDEX], bytes[DST_NODE_INDEX], bytes[DST_UNIT_INDEX]}
	header.src = FinsAddress{bytes[SRC_NETWORK_INDEX], bytes[SRC_NODE_INDEX], bytes[SRC_UNIT_INDEX]}
	header.serviceID = bytes[SERVICE_ID_INDEX]

	return header
}

func encodeHeader(h Header) []byte {
	var icf byte
	icf = 1 << icfBridgesBit
	if h.responseRequired == false {
		icf |= 1 << icfResponseRequiredBit
	}
	if h.messageType == MessageTypeResponse {
		icf |= 1 << icfMessageTypeBit
	}
	bytes := []byte{
		icf, 0x00, h.gatewayCount,
		h.dst.Network, h.dst.Node, h.dst.Unit,
		h.src.Network, h.src.Node, h.src.Unit,
		h.serviceID}
	return bytes
}
