/*
Package fins implements a client for the data memory (DM) area of Omron PLCs
over FINS (Factory Interface Network Service) on UDP.

Every operation is a single request/response exchange of one datagram each
way. Exchanges on a Client are serialized, bounded by a timeout, and reflected
in a shared ConnectivityState that callers can observe.

# Features

  - Read and write DM words with explicit command frames (0x0101 / 0x0102)
  - Word, boolean, float and text conversions over raw word buffers
  - Context-based cancellation on top of a per-exchange timeout
  - Fresh socket after every timeout or transport error
  - Interceptors for logging, tracing, metrics and validation
  - Plugins notified on connectivity transitions
  - PLC simulator for testing

# Quick Start

	endpoint, err := fins.NewEndpoint("192.168.250.1", 9600)
	if err != nil {
		log.Fatal(err)
	}

	client, err := fins.NewClient(endpoint, fins.WithTimeout(2*time.Second))
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	ctx := context.Background()

	// 44 words starting at D1000
	buf, err := client.ReadWords(ctx, 1000, 44)
	if err != nil {
		log.Printf("read: %v", err)
		return
	}

	torque, _ := fins.DecodeFloat32(buf, 11, 10)
	name, _ := fins.DecodeText(buf, 34, 43, false)
	log.Printf("torque=%.2f name=%q", torque, name)

	// Write three words at D2000
	if err := client.WriteWordArray(ctx, 2000, []uint16{1, 2, 3}); err != nil {
		log.Printf("write: %v", err)
	}

# Connectivity

A Client never reconnects on its own and never retries. After a timeout or
transport error the socket is replaced so that a late datagram from the
failed exchange is not taken for the answer to the next one, and replies whose
command code or length do not fit the request are dropped. Successful
exchanges mark the PLC and device reachable; any failure after the request
was sent, including a non-zero end code, marks them unreachable.

	state := fins.NewConnectivityState()
	a, _ := fins.NewClient(endpointA, fins.WithConnectivityState(state))
	b, _ := fins.NewClient(endpointB, fins.WithConnectivityState(state))

	if !client.TestConnection(ctx, time.Second) {
		log.Println("PLC is not answering")
	}

# Interceptors

Interceptors wrap every public operation:

	metrics := fins.NewMetricsCollector()
	client, _ := fins.NewClient(endpoint,
		fins.WithLogger(logger),
		fins.WithInterceptor(
			fins.LoggingInterceptor(logger),
			fins.ValidationInterceptor(),
			metrics.Interceptor(),
		),
	)

# Context Support

The effective deadline of an exchange is the earlier of the client timeout and
the context deadline. Cancelling the context aborts a pending receive.

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_, err := client.ReadWords(ctx, 0, 10)

# Error Handling

	var te *fins.TimeoutError
	var pe *fins.ProtocolError
	switch {
	case errors.As(err, &te):
		// no answer in time
	case errors.As(err, &pe):
		log.Printf("PLC end code 0x%04X", pe.EndCode)
	case errors.Is(err, fins.ClientClosedError{}):
		// client was closed
	}

ArgumentError and ClientClosedError are returned before any I/O and leave
connectivity untouched.

# Testing with PLC Simulator

	srv, _ := fins.NewPLCSimulator(&net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	defer srv.Close()

	client, _ := fins.NewClient(srv.Endpoint())
	_ = srv.SetWords(100, fins.EncodeWords(1, 2, 3))
*/
package fins
