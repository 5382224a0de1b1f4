package fins

import (
	"fmt"
	"net"
	"strconv"
)

// FinsAddress A FINS device address
type FinsAddress struct {
	Network byte
	Node    byte
	Unit    byte
}

// Endpoint The UDP endpoint of a PLC. Immutable for the lifetime of a client.
type Endpoint struct {
	Host string
	Port int
}

// NewEndpoint validates host and port and returns an Endpoint.
func NewEndpoint(host string, port int) (Endpoint, error) {
	e := Endpoint{Host: host, Port: port}
	if err := e.validate(); err != nil {
		return Endpoint{}, err
	}
	return e, nil
}

func (e Endpoint) validate() error {
	if e.Host == "" {
		return &ArgumentError{Arg: "host", Reason: "must not be empty"}
	}
	if e.Port <= 0 || e.Port > 65535 {
		return &ArgumentError{Arg: "port", Reason: fmt.Sprintf("%d is outside 1-65535", e.Port)}
	}
	return nil
}

// String returns host:port.
func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e Endpoint) resolve() (*net.UDPAddr, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}
	addr, err := net.ResolveUDPAddr("udp", e.String())
	if err != nil {
		return nil, &TransportError{Endpoint: e.String(), Op: "resolve", Err: err}
	}
	return addr, nil
}
