package relay

import (
	"sync"

	"github.com/webmrelay/webmrelay/internal/ebml"
)

// maxMetadataTagSize bounds every top-level element except Cluster: Info,
// Tracks, SeekHead, Cues, Chapters, Tags, Void, and PrevSize have no
// business being large, and buffering one unbounded is how a confused or
// hostile producer turns a relay into a memory exhaustion target.
const maxMetadataTagSize = 1024 * 1024

// maxClusterSize bounds a single Cluster. A few seconds of 4K video at a
// generous bitrate comfortably fits; anything past this is almost
// certainly a malformed or indeterminate-length Cluster, which this relay
// does not support (see Design Note in DESIGN.md).
const maxClusterSize = 16 * 1024 * 1024

// Broadcast is a single live stream: one producer feeding Send, and any
// number of subscribers registered through Connect. It parses the
// incoming byte stream incrementally, so Send may be called with
// arbitrarily small or large chunks as they arrive off the wire.
//
// A Broadcast is safe for concurrent use; Send, Connect, Disconnect, Stop,
// and Tick may all be called from different goroutines.
type Broadcast struct {
	mu  sync.RWMutex
	buf ebml.Buffer

	sawEBML    bool
	sawSegment bool
	sawTracks  bool

	preamble  []byte
	trackInfo TrackInfo
	timecode  ebml.TimecodeState

	nextID int32
	subs   map[int32]*subscriber

	// OnKeyframeResync, if set, is called once for every already-connected
	// subscriber whose keyframe gate closes again because of a segment
	// restart. It is pure observability (a metrics counter bump); nothing
	// in the core reads it back.
	OnKeyframeResync func()

	closed  bool
	bytesIn uint64

	tickBytes    uint64
	rateSeenTick bool
	rateMean     float64
	rateVar      float64
}

// rateAlpha is the EWMA smoothing factor applied once per Tick.
const rateAlpha = 0.3

// NewBroadcast returns an empty Broadcast ready to accept producer bytes.
func NewBroadcast() *Broadcast {
	return &Broadcast{
		subs: make(map[int32]*subscriber),
	}
}

// Send feeds producer bytes into the broadcast. It parses as many
// complete top-level elements as data (combined with anything buffered
// from a previous call) allows, rewriting and delivering each Cluster to
// every subscriber as it completes. A non-nil error is fatal: the
// producer's stream is malformed or violates a constraint the relay
// cannot safely rewrite around, and the Broadcast will not accept further
// Sends.
func (b *Broadcast) Send(data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	b.bytesIn += uint64(len(data))
	b.tickBytes += uint64(len(data))
	b.buf.Append(data)

	for {
		progressed, err := b.step()
		if err != nil {
			b.teardown()
			return err
		}
		if !progressed {
			return nil
		}
	}
}

// step consumes at most one complete top-level element from the front of
// b.buf. It returns (false, nil) when the buffer holds an incomplete
// element and the caller should wait for more data.
func (b *Broadcast) step() (bool, error) {
	view := b.buf.View()
	if len(view) == 0 {
		return false, nil
	}

	tag, err := ebml.ParseTagHeader(view)
	if err != nil {
		return false, err
	}
	if tag.Consumed == 0 {
		return false, nil
	}

	switch tag.ID {
	case ebml.TagEBML:
		if b.sawEBML {
			b.resetForNewSegment()
		}
		ok, err := b.copyVerbatim(view, tag)
		if ok {
			b.sawEBML = true
		}
		return ok, err
	case ebml.TagSegment:
		return b.consumeSegmentHeader(tag)
	case ebml.TagInfo:
		return b.consumeInfo(view, tag)
	case ebml.TagTracks:
		return b.consumeTracks(view, tag)
	case ebml.TagCluster:
		return b.consumeCluster(view, tag)
	case ebml.TagSeekHead, ebml.TagCues, ebml.TagChapters, ebml.TagTags, ebml.TagVoid, ebml.TagPrevSize:
		return b.dropTag(view, tag)
	default:
		return false, ErrUnknownTag
	}
}

// copyVerbatim appends a fully-buffered tag to the preamble unmodified and
// forwards it to every already-connected, non-header-skipping subscriber
// as header bytes — a subscriber alive across a producer restart needs
// the new EBML header just as much as one connecting fresh does.
func (b *Broadcast) copyVerbatim(view []byte, tag ebml.Tag) (bool, error) {
	if tag.Length == ebml.Indeterminate {
		return false, ErrMalformedEBML
	}
	if tag.Length > maxMetadataTagSize {
		return false, ErrTagTooLarge
	}
	full, err := ebml.ParseTag(view)
	if err != nil {
		return false, err
	}
	if full.Consumed == 0 {
		return false, nil
	}
	chunk := view[:full.End()]
	b.preamble = append(b.preamble, chunk...)
	b.forwardHeader(chunk)
	b.buf.Shift(full.End())
	return true, nil
}

// forwardHeader hands a newly-captured preamble fragment (EBML header,
// Segment header, Info, or Tracks) to every currently-connected
// subscriber that didn't ask to skip headers, as a forced write. This is
// what lets a subscriber already connected before a producer restart
// receive the new segment's header bytes instead of only its Clusters —
// Connect's own preamble replay only covers subscribers joining fresh.
//
// A write error here is the subscriber's problem, not the broadcast's: it
// stays registered with its keyframe gate cleared, so it resynchronizes
// on the next keyframe cluster instead of being torn down over one failed
// write.
func (b *Broadcast) forwardHeader(data []byte) {
	if len(data) == 0 {
		return
	}
	for _, sub := range b.subs {
		if sub.skipHeaders {
			continue
		}
		if err := sub.cb(data, true); err != nil {
			sub.keyframeSeen = 0
		}
	}
}

// dropTag discards a fully-buffered tag the relay does not forward.
func (b *Broadcast) dropTag(view []byte, tag ebml.Tag) (bool, error) {
	if tag.Length == ebml.Indeterminate {
		return false, ErrMalformedEBML
	}
	if tag.Length > maxMetadataTagSize {
		return false, ErrTagTooLarge
	}
	full, err := ebml.ParseTag(view)
	if err != nil {
		return false, err
	}
	if full.Consumed == 0 {
		return false, nil
	}
	b.buf.Shift(full.End())
	return true, nil
}

// consumeSegmentHeader consumes just the Segment element's id+length —
// never its body, since that body is the rest of the stream. A Segment
// seen for the second time is a producer restart.
func (b *Broadcast) consumeSegmentHeader(tag ebml.Tag) (bool, error) {
	if b.sawSegment {
		b.resetForNewSegment()
	}
	b.sawSegment = true
	header := ebml.WriteTag(nil, ebml.TagSegment, ebml.Indeterminate)
	b.preamble = append(b.preamble, header...)
	b.forwardHeader(header)
	b.buf.Shift(tag.Consumed)
	return true, nil
}

func (b *Broadcast) consumeCluster(view []byte, tag ebml.Tag) (bool, error) {
	if !b.sawTracks {
		return false, ErrMalformedEBML
	}
	if tag.Length == ebml.Indeterminate {
		return false, ErrMalformedEBML
	}
	if tag.Length > maxClusterSize {
		return false, ErrTagTooLarge
	}
	full, err := ebml.ParseTag(view)
	if err != nil {
		return false, err
	}
	if full.Consumed == 0 {
		return false, nil
	}

	cluster := view[:full.End()]
	adjusted, err := ebml.AdjustTimecode(&b.timecode, cluster)
	if err != nil {
		return false, err
	}
	b.deliverCluster(adjusted)

	b.buf.Shift(full.End())
	return true, nil
}

// deliverCluster strips reference frames for each subscriber's own
// keyframe gate and hands the result to its callback. A subscriber whose
// gate hasn't opened on any track yet gets nothing for this cluster.
//
// A parse error on a subscriber's own keyframe mask, or a write error
// from its callback, clears that subscriber's keyframe gate rather than
// disconnecting it: the engine keeps running and the subscriber
// resynchronizes cleanly the next time a keyframe cluster arrives.
func (b *Broadcast) deliverCluster(adjusted []byte) {
	tag, err := ebml.ParseTagHeader(adjusted)
	if err != nil || tag.Consumed == 0 {
		return
	}
	payload := tag.Contents(adjusted)

	for _, sub := range b.subs {
		stripped, kept, err := ebml.StripReferenceFrames(payload, &sub.keyframeSeen)
		if err != nil {
			sub.keyframeSeen = 0
			continue
		}
		if !kept {
			continue
		}

		out := ebml.WriteTag(nil, ebml.TagCluster, uint64(len(stripped)))
		out = append(out, stripped...)
		if err := sub.cb(out, false); err != nil {
			sub.keyframeSeen = 0
		}
	}
}

// resetForNewSegment clears everything tied to the previous stream
// identity: the preamble must be rebuilt from scratch, and every
// subscriber's keyframe gate closes again since the new segment's first
// Cluster starts a fresh GOP. The timecode state is deliberately left
// alone — timecode_shift and timecode_last are broadcast-level, not
// segment-level, and must survive a restart so a subscriber watching
// across the boundary never sees timecodes run backwards.
func (b *Broadcast) resetForNewSegment() {
	b.preamble = b.preamble[:0]
	b.sawSegment = false
	b.sawTracks = false
	b.trackInfo = TrackInfo{}
	for _, sub := range b.subs {
		if sub.keyframeSeen != 0 && b.OnKeyframeResync != nil {
			b.OnKeyframeResync()
		}
		sub.keyframeSeen = 0
	}
}

// Connect registers a subscriber. Unless skipHeaders is set, the current
// preamble (everything from the EBML header through Tracks) is delivered
// synchronously, with force set, before Connect returns — so the
// subscriber gets the codec setup it needs before the first Cluster
// arrives. A failed replay is treated like any other write error: the
// subscriber is still registered, with its keyframe gate closed. Connect
// returns 0 only if the broadcast is stopped.
func (b *Broadcast) Connect(cb OnChunk, skipHeaders bool) int32 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0
	}
	if !skipHeaders && len(b.preamble) > 0 {
		// The new subscriber's gate starts closed, so there is nothing
		// further to clear if this write fails.
		cb(b.preamble, true)
	}

	b.nextID++
	id := b.nextID
	b.subs[id] = &subscriber{cb: cb, skipHeaders: skipHeaders}
	return id
}

// Disconnect unregisters a subscriber. It is idempotent: disconnecting an
// unknown or already-disconnected id is a no-op.
func (b *Broadcast) Disconnect(id int32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// Stop tears the broadcast down: every subscriber receives one final
// forced zero-length write as an end-of-stream signal, then is
// unregistered. Stop is idempotent, and Send returns ErrClosed afterward.
func (b *Broadcast) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.teardown()
}

// teardown is the shared, idempotent path for both an explicit Stop and a
// fatal Send error: either way, every subscriber needs its final
// end-of-stream write exactly once. Callers hold b.mu.
func (b *Broadcast) teardown() {
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		sub.cb(nil, true)
		delete(b.subs, id)
	}
}

// TrackInfo returns the codec metadata most recently parsed from Tracks.
func (b *Broadcast) TrackInfo() TrackInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.trackInfo
}

// Tick updates the ingest-rate estimate from bytes received since the
// previous call and returns a snapshot of the broadcast's counters. The
// caller is responsible for calling it on a roughly one-second cadence;
// Broadcast does not run its own timer.
func (b *Broadcast) Tick() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	rate := float64(b.tickBytes)
	b.tickBytes = 0

	if !b.rateSeenTick {
		b.rateMean = rate
		b.rateVar = 0
		b.rateSeenTick = true
	} else {
		delta := rate - b.rateMean
		b.rateMean += rateAlpha * delta
		b.rateVar = (1 - rateAlpha) * (b.rateVar + rateAlpha*delta*delta)
	}

	return Stats{
		BytesIn:     b.bytesIn,
		Subscribers: len(b.subs),
		RateMean:    b.rateMean,
		RateVar:     b.rateVar,
	}
}
