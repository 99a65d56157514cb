package smtp

import (
	"context"
	"net"
)

// Transport is the capability set a caller provides to a Session: enough
// to connect to a remote endpoint and exchange bytes over a reliable,
// ordered stream. The library never configures the network stack itself
// (no interface bring-up, no DNS) — it consumes an already-addressed
// endpoint string verbatim and hands it to Connect.
//
// Read and Write behave like io.Reader/io.Writer: Read blocks until at
// least one byte is available or a fault occurs; Write may return a
// short count, which the Session retries until the full line is sent.
type Transport interface {
	// Connect establishes the underlying connection to endpoint. ctx
	// bounds only this call — the library owns no other timers.
	Connect(ctx context.Context, endpoint string) error
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// NetTransport adapts a net.Conn-shaped dialer to the Transport
// interface, for callers that do have a real socket (desktop or test
// use; the embedded target typically implements Transport directly over
// its own TCP/IP stack). It performs no buffering of its own.
type NetTransport struct {
	Dialer interface {
		DialContext(ctx context.Context, network, address string) (net.Conn, error)
	}
	conn net.Conn
}

// NewNetTransport returns a NetTransport that dials with net.Dialer's
// default zero value unless a custom dialer is assigned afterward.
func NewNetTransport() *NetTransport {
	return &NetTransport{Dialer: &net.Dialer{}}
}

func (t *NetTransport) Connect(ctx context.Context, endpoint string) error {
	conn, err := t.Dialer.DialContext(ctx, "tcp", endpoint)
	if err != nil {
		return err
	}
	t.conn = conn
	return nil
}

func (t *NetTransport) Read(p []byte) (int, error)  { return t.conn.Read(p) }
func (t *NetTransport) Write(p []byte) (int, error) { return t.conn.Write(p) }
func (t *NetTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}
