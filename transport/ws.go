package transport

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/webmrelay/webmrelay/internal/relay"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler serves a live stream over a WebSocket connection: the preamble
// and every rewritten Cluster are each delivered as one binary frame.
type WSHandler struct {
	Set *relay.Set

	// KeyFromRequest extracts the stream key from the request. Required.
	KeyFromRequest func(r *http.Request) string

	// OnBytesOut, if set, is called with the size of every frame
	// successfully written to the client.
	OnBytesOut func(n int)
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := h.KeyFromRequest(r)
	b, ok := h.Set.Readable(key)
	if !ok {
		http.NotFound(w, r)
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	var closeOnce sync.Once
	done := make(chan struct{})
	closeDone := func() { closeOnce.Do(func() { close(done) }) }

	id := b.Connect(func(data []byte, force bool) error {
		if data == nil && force {
			closeDone()
			return nil
		}
		writeMu.Lock()
		err := conn.WriteMessage(websocket.BinaryMessage, data)
		writeMu.Unlock()
		if err != nil {
			closeDone()
			return err
		}
		if h.OnBytesOut != nil {
			h.OnBytesOut(len(data))
		}
		return nil
	}, false)
	if id == 0 {
		return
	}
	defer b.Disconnect(id)

	// Drain and discard client reads so a lost TCP connection surfaces as
	// a read error promptly, rather than leaving the subscriber registered
	// until the next failed write.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeDone()
				return
			}
		}
	}()

	<-done
}
