package jaeger

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/JailtonJunior94/tracekit-go/pkg/tracing/exporter"
	"github.com/JailtonJunior94/tracekit-go/pkg/tracing/span"
)

// ErrAddressFamilyMismatch is returned when the bind and server addresses are
// not both IPv4 or both IPv6.
var ErrAddressFamilyMismatch = errors.New("reporter bind address and server address use different IP families")

// UDPExporter writes encoded batches to a Jaeger agent.
type UDPExporter struct {
	encoder *Encoder
	conn    *net.UDPConn
	closed  sync.Once
	err     error
}

var _ exporter.Exporter = (*UDPExporter)(nil)

// ResolveAddrs resolves the agent address and the optional local bind
// address, checking both belong to the same IP family.
func ResolveAddrs(serverAddr, bindAddr string) (remote, local *net.UDPAddr, err error) {
	remote, err = net.ResolveUDPAddr("udp", serverAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve jaeger agent address %q: %w", serverAddr, err)
	}

	if bindAddr == "" {
		return remote, nil, nil
	}

	local, err = net.ResolveUDPAddr("udp", bindAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve reporter bind address %q: %w", bindAddr, err)
	}

	if local.IP != nil && (remote.IP.To4() == nil) != (local.IP.To4() == nil) {
		return nil, nil, ErrAddressFamilyMismatch
	}
	return remote, local, nil
}

// NewUDPExporter connects a UDP socket to serverAddr, bound to bindAddr when
// it is not empty.
func NewUDPExporter(serverAddr, bindAddr string, encoder *Encoder) (*UDPExporter, error) {
	remote, local, err := ResolveAddrs(serverAddr, bindAddr)
	if err != nil {
		return nil, err
	}

	conn, err := net.DialUDP("udp", local, remote)
	if err != nil {
		return nil, &exporter.TransportError{Op: "dial", Err: err}
	}

	return &UDPExporter{encoder: encoder, conn: conn}, nil
}

// LocalAddr returns the address the socket is bound to.
func (e *UDPExporter) LocalAddr() net.Addr {
	return e.conn.LocalAddr()
}

// Export encodes batch and writes one datagram per packet. The write deadline
// follows ctx.
func (e *UDPExporter) Export(ctx context.Context, batch []span.FinishedSpan) error {
	if err := ctx.Err(); err != nil {
		return &exporter.TransportError{Op: "write", Err: err}
	}

	packets, encodeErr := e.encoder.Encode(batch)
	if encodeErr != nil && !errors.Is(encodeErr, ErrSpanTooLarge) {
		return encodeErr
	}

	deadline, _ := ctx.Deadline()
	if err := e.conn.SetWriteDeadline(deadline); err != nil {
		return &exporter.TransportError{Op: "set_deadline", Err: err}
	}

	for _, p := range packets {
		if _, err := e.conn.Write(p); err != nil {
			return &exporter.TransportError{Op: "write", Err: err}
		}
	}

	var tooLarge *SpanTooLargeError
	if errors.As(encodeErr, &tooLarge) {
		return &exporter.DroppedSpansError{Reason: exporter.DropTooLarge, Count: tooLarge.Count, Err: encodeErr}
	}
	return nil
}

// Shutdown closes the socket.
func (e *UDPExporter) Shutdown(context.Context) error {
	e.closed.Do(func() {
		e.err = e.conn.Close()
	})
	return e.err
}
