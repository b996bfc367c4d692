package relay

// subscriber is the fan-out state the Broadcast keeps for one connected
// subscriber: its delivery callback and its own per-track keyframe gate.
// The gate is per-subscriber, not shared, because each subscriber joins
// mid-stream and must wait for its own first keyframe per track before it
// can be handed any delta frame for that track.
type subscriber struct {
	cb           OnChunk
	skipHeaders  bool
	keyframeSeen uint64
}
