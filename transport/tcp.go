package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/webmrelay/webmrelay/internal/relay"
)

// maxKeyLineLength bounds the first line of a producer connection, which
// names the stream key. A key does not need to be long; this mainly stops
// a confused client from having its whole stream mistaken for a key.
const maxKeyLineLength = 256

// TCPIngest accepts one producer connection per stream key over plain TCP.
// The wire protocol is deliberately minimal: the first line (newline
// terminated) is the stream key, and every byte after that is fed straight
// to the key's relay.Broadcast.
type TCPIngest struct {
	Addr string
	Set  *relay.Set

	// OnConnect and OnDisconnect, if set, let the caller log connection
	// lifecycle events; TCPIngest itself never logs.
	OnConnect    func(key, remoteAddr string)
	OnDisconnect func(key string, err error)
}

// ListenAndServe runs the TCP ingest listener until ctx is canceled.
func (t *TCPIngest) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", t.Addr)
	if err != nil {
		return fmt.Errorf("tcp ingest listen: %w", err)
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("tcp ingest accept: %w", err)
			}
		}
		go t.handle(conn)
	}
}

func (t *TCPIngest) handle(conn net.Conn) {
	defer conn.Close()

	r := bufio.NewReaderSize(conn, maxKeyLineLength)
	line, err := r.ReadSlice('\n')
	if err != nil {
		return
	}
	key := strings.TrimSpace(string(line))
	if key == "" {
		return
	}

	b, ok := t.Set.Writable(key)
	if !ok {
		return
	}
	if t.OnConnect != nil {
		t.OnConnect(key, conn.RemoteAddr().String())
	}

	err = pumpToBroadcast(b, r)
	t.Set.Close(key)
	if t.OnDisconnect != nil {
		t.OnDisconnect(key, err)
	}
}

// pumpToBroadcast copies r into b.Send until EOF or a fatal error. A
// Broadcast.Send error is fatal to the Broadcast itself (see its doc
// comment), so the loop exits rather than continuing to read a producer
// whose stream the relay has already given up on.
func pumpToBroadcast(b *relay.Broadcast, r io.Reader) error {
	buf := make([]byte, 32*1024)
	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			if sendErr := b.Send(buf[:n]); sendErr != nil {
				return sendErr
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return readErr
		}
	}
}
