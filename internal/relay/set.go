package relay

import (
	"sync"
	"time"
)

// defaultStreamTimeout is how long a closed stream's Broadcast is kept
// around, in case the producer reconnects with the same key, before its
// subscribers are torn down and the key is freed for reuse.
const defaultStreamTimeout = 30 * time.Second

// entry is the bookkeeping a Set keeps for one stream key.
type entry struct {
	broadcast *Broadcast
	closed    bool
	closedAt  time.Time

	lastTrackInfo    TrackInfo
	lastTrackInfoSet time.Time
}

// Set multiplexes any number of concurrently live streams, each identified
// by an opaque key (a stream id, a stream key from the wire protocol,
// whatever the caller's transport layer uses to tell producers apart). It
// owns the lifecycle of each stream's Broadcast: creating it on first use,
// keeping it alive across a brief producer disconnect, and tearing it down
// once Timeout has elapsed with no new producer.
//
// A Set does not log; OnStreamClose and OnStreamTrackInfo are the caller's
// hook for that, matching how Broadcast itself stays silent.
type Set struct {
	// Timeout is how long a closed stream is kept before teardown. Zero
	// means defaultStreamTimeout. Read by the background reaper; set it
	// before the first call to Writable if a non-default value is needed.
	Timeout time.Duration

	// OnStreamClose, if set, is called once a stream's Broadcast has been
	// stopped and evicted, with the key that is now free for reuse.
	OnStreamClose func(key string)

	// OnStreamTrackInfo, if set, is called at most once per second per
	// key, and only when TrackInfo has changed since the last call.
	OnStreamTrackInfo func(key string, info TrackInfo)

	mu      sync.Mutex
	streams map[string]*entry
}

// Writable returns the Broadcast a producer should Send into for key,
// creating one if key is unknown, or reopening and returning the existing
// one if key was closed and has not yet been reaped. The second return value is false only when key already names
// a live, unclosed stream — a second producer cannot claim it.
func (s *Set) Writable(key string) (*Broadcast, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.init()
	if e, ok := s.streams[key]; ok {
		if !e.closed {
			return nil, false
		}
		e.closed = false
		return e.broadcast, true
	}

	b := NewBroadcast()
	s.streams[key] = &entry{broadcast: b}
	return b, true
}

// Readable returns the Broadcast subscribers should Connect to for key. It
// never creates a stream: the second return value is false if key is
// unknown.
func (s *Set) Readable(key string) (*Broadcast, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.init()
	e, ok := s.streams[key]
	if !ok {
		return nil, false
	}
	return e.broadcast, true
}

// Close marks key's stream as no longer accepting producer data. Its
// Broadcast and subscribers are left alive until Timeout elapses with no
// intervening Writable call, so a producer that reconnects quickly does
// not disrupt viewers. Closing an unknown key is a no-op.
func (s *Set) Close(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.streams[key]
	if !ok || e.closed {
		return
	}
	e.closed = true
	e.closedAt = s.now()
}

// Keys returns the stream keys currently tracked, open or closed.
func (s *Set) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.streams))
	for k := range s.streams {
		keys = append(keys, k)
	}
	return keys
}

// NoteTrackInfo lets a caller that has just observed a TrackInfo change
// (typically right after a Connect or a Tracks rewrite) trigger
// OnStreamTrackInfo's once-per-second rate limiting. Reap does not call
// it; callers that want track-info callbacks poll it themselves.
func (s *Set) NoteTrackInfo(key string, info TrackInfo) {
	s.mu.Lock()
	e, ok := s.streams[key]
	if !ok {
		s.mu.Unlock()
		return
	}
	changed := e.lastTrackInfo != info
	due := s.now().Sub(e.lastTrackInfoSet) >= time.Second
	if changed && due {
		e.lastTrackInfo = info
		e.lastTrackInfoSet = s.now()
	}
	cb := s.OnStreamTrackInfo
	s.mu.Unlock()

	if changed && due && cb != nil {
		cb(key, info)
	}
}

// Reap evicts any closed stream whose Timeout has elapsed: its Broadcast
// is stopped (sending every subscriber a final forced end-of-stream
// write), the key is freed, and OnStreamClose fires. Callers run Reap on a
// periodic ticker; Set does not run its own timer.
func (s *Set) Reap() {
	s.mu.Lock()
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultStreamTimeout
	}
	now := s.now()

	var evicted []string
	var broadcasts []*Broadcast
	for key, e := range s.streams {
		if e.closed && now.Sub(e.closedAt) >= timeout {
			evicted = append(evicted, key)
			broadcasts = append(broadcasts, e.broadcast)
			delete(s.streams, key)
		}
	}
	cb := s.OnStreamClose
	s.mu.Unlock()

	for _, b := range broadcasts {
		b.Stop()
	}
	if cb != nil {
		for _, key := range evicted {
			cb(key)
		}
	}
}

func (s *Set) init() {
	if s.streams == nil {
		s.streams = make(map[string]*entry)
	}
}

func (s *Set) now() time.Time {
	return time.Now()
}
