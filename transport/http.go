package transport

import (
	"net/http"
	"sync"

	"github.com/webmrelay/webmrelay/internal/relay"
)

// LiveHandler serves a live stream as an HTTP chunked-transfer response:
// the preamble (EBML header through Tracks) followed by every rewritten
// Cluster as it arrives, for as long as the client keeps the connection
// open. It never returns until the stream ends or the client disconnects.
type LiveHandler struct {
	Set *relay.Set

	// KeyFromRequest extracts the stream key from the request, typically
	// a path parameter. Required.
	KeyFromRequest func(r *http.Request) string

	// OnBytesOut, if set, is called with the size of every chunk
	// successfully written to the client.
	OnBytesOut func(n int)
}

func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := h.KeyFromRequest(r)
	b, ok := h.Set.Readable(key)
	if !ok {
		http.NotFound(w, r)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "video/webm")
	w.WriteHeader(http.StatusOK)

	var closeOnce sync.Once
	done := make(chan struct{})
	closeDone := func() { closeOnce.Do(func() { close(done) }) }

	id := b.Connect(func(data []byte, force bool) error {
		if data == nil && force {
			closeDone()
			return nil
		}
		if _, err := w.Write(data); err != nil {
			closeDone()
			return err
		}
		flusher.Flush()
		if h.OnBytesOut != nil {
			h.OnBytesOut(len(data))
		}
		return nil
	}, false)
	if id == 0 {
		return
	}
	defer b.Disconnect(id)

	select {
	case <-done:
	case <-r.Context().Done():
	}
}
