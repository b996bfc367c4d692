package relay

// TrackInfo is a read-only snapshot of the codec metadata most recently
// parsed out of the stream's Tracks element. It has no effect on the
// rewritten byte stream; it exists purely so a collaborator (a stream
// listing page, a metrics exporter) can describe what's live without
// re-parsing EBML itself.
type TrackInfo struct {
	HasAudio bool
	HasVideo bool
	Width    int
	Height   int
}

// Stats is a point-in-time snapshot of a Broadcast's ingest counters.
type Stats struct {
	BytesIn     uint64
	Subscribers int
	RateMean    float64 // bytes/sec, exponentially weighted
	RateVar     float64
}

// OnChunk delivers one chunk of rewritten WebM bytes to a subscriber.
// force is true for preamble/header bytes a transport must not drop even
// under backpressure; a non-nil return is treated as a write error for
// that subscriber only. The subscriber stays registered — its keyframe
// mask is cleared instead, so it resynchronizes cleanly on the next
// keyframe cluster rather than being torn down over one failed write.
//
// OnChunk must not block, and must not retain data past the call: the
// Broadcast reuses its rewrite buffers across calls.
type OnChunk func(data []byte, force bool) error
