package ebml

// maxTrackNumber is the highest track number the relay can gate keyframes
// for; track state is kept in a uint64 bitmask, one bit per track.
const maxTrackNumber = 63

// blockTrackNumber reads the leading track-number field common to Block
// and SimpleBlock payloads, a plain EBML VarInt.
func blockTrackNumber(payload []byte) (track uint64, consumed int, err error) {
	v, err := ParseUint(payload, false)
	if err != nil {
		return 0, 0, err
	}
	if v.Consumed == 0 {
		return 0, 0, ErrMalformedEBML
	}
	return v.Value, v.Consumed, nil
}

// StripReferenceFrames rewrites the payload of one Cluster element,
// dropping SimpleBlocks and BlockGroups for any track that has not yet
// produced a keyframe since seen was last reset. seen is a bitmask, one
// bit per track number, owned by the caller (typically a per-subscriber
// keyframe-gate state) and updated in place: once a track's keyframe is
// observed its bit is set and its later delta frames pass through
// unmodified.
//
// A SimpleBlock is a keyframe if its flags byte has the top bit set. A
// BlockGroup is a keyframe if it has no ReferenceBlock child, or only
// ReferenceBlock children with a zero value — Matroska muxers usually
// omit ReferenceBlock entirely on the first frame of a GOP.
//
// kept reports whether any SimpleBlock or BlockGroup survived the pass.
// A cluster can come out with kept=false even though out is non-empty —
// every block dropped still leaves Timecode and other passthrough
// children in out — so callers must check kept, not len(out), to decide
// whether this cluster is effectively empty for the subscriber.
func StripReferenceFrames(cluster []byte, seen *uint64) (out []byte, kept bool, err error) {
	out = make([]byte, 0, len(cluster))
	rest := cluster
	for len(rest) > 0 {
		tag, err := ParseTag(rest)
		if err != nil {
			return nil, false, err
		}
		if tag.Consumed == 0 {
			return nil, false, ErrMalformedEBML
		}

		switch tag.ID {
		case TagSimpleBlock:
			keep, err := stripSimpleBlock(tag.Contents(rest), seen)
			if err != nil {
				return nil, false, err
			}
			if keep {
				out = append(out, rest[:tag.End()]...)
				kept = true
			}
		case TagBlockGroup:
			keep, err := stripBlockGroup(tag.Contents(rest), seen)
			if err != nil {
				return nil, false, err
			}
			if keep {
				out = append(out, rest[:tag.End()]...)
				kept = true
			}
		case TagPrevSize:
			// Points at the previous cluster's byte size. A fresh
			// subscriber never received that cluster, so the reference
			// is meaningless to it; drop unconditionally.
		default:
			out = append(out, rest[:tag.End()]...)
		}

		rest = rest[tag.End():]
	}
	return out, kept, nil
}

func stripSimpleBlock(payload []byte, seen *uint64) (keep bool, err error) {
	track, n, err := blockTrackNumber(payload)
	if err != nil {
		return false, err
	}
	if track > maxTrackNumber {
		return false, ErrTrackOverflow
	}
	if n+2 >= len(payload) {
		return false, ErrMalformedEBML
	}
	flags := payload[n+2] // track-number VarInt, 2-byte timecode, flags
	if flags&0x80 != 0 {
		*seen |= 1 << track
	}
	return *seen&(1<<track) != 0, nil
}

func stripBlockGroup(payload []byte, seen *uint64) (keep bool, err error) {
	var block []byte
	hasReference := false

	rest := payload
	for len(rest) > 0 {
		tag, err := ParseTag(rest)
		if err != nil {
			return false, err
		}
		if tag.Consumed == 0 {
			return false, ErrMalformedEBML
		}
		switch tag.ID {
		case TagBlock:
			block = tag.Contents(rest)
		case TagReferenceBlock:
			if ReadFixedUint(tag.Contents(rest)) != 0 {
				hasReference = true
			}
		}
		rest = rest[tag.End():]
	}
	if block == nil {
		return false, ErrMalformedEBML
	}

	track, _, err := blockTrackNumber(block)
	if err != nil {
		return false, err
	}
	if track > maxTrackNumber {
		return false, ErrTrackOverflow
	}
	if !hasReference {
		*seen |= 1 << track
	}
	return *seen&(1<<track) != 0, nil
}

// TimecodeState tracks the running shift applied to a stream's Cluster
// timecodes so that output timecodes stay monotonically increasing across
// a segment restart, where the producer's own clock resets to zero. It is
// broadcast-level, not segment-level: a new Segment never resets it.
type TimecodeState struct {
	shift   int64
	lastOut int64
}

// AdjustTimecode rewrites the Timecode child of one complete Cluster
// element (id, length, and payload all present in cluster) so that its
// value, after the running shift, is never less than the last timecode
// this state emitted. If the producer's own timecode ever jumps backwards
// — the hallmark of a segment restart — the shift is increased so output
// timecodes hold at the previous floor instead of following it down.
//
// If the running shift is (and remains) zero, the cluster is returned
// unchanged rather than re-encoded: the common case of a producer that
// never restarts its clock costs nothing beyond the timecode comparison.
//
// Clusters without a Timecode child are returned unchanged; every
// well-formed Matroska Cluster has one as its first child, but a relay
// built to survive malformed input can't assume that.
func AdjustTimecode(state *TimecodeState, cluster []byte) ([]byte, error) {
	tag, err := ParseTagHeader(cluster)
	if err != nil {
		return nil, err
	}
	if tag.Consumed == 0 || tag.ID != TagCluster {
		return nil, ErrMalformedEBML
	}

	end := tag.End()
	if tag.Length == Indeterminate || end > len(cluster) {
		end = len(cluster)
	}
	payload := cluster[tag.Consumed:end]

	rest := payload
	for len(rest) > 0 {
		child, err := ParseTag(rest)
		if err != nil {
			return nil, err
		}
		if child.Consumed == 0 {
			return nil, ErrMalformedEBML
		}
		if child.ID != TagTimecode {
			rest = rest[child.End():]
			continue
		}

		producerTC := int64(ReadFixedUint(child.Contents(rest)))
		adjusted, shifted := adjustTimecodeValue(state, producerTC)
		if !shifted {
			return cluster, nil
		}

		start := len(payload) - len(rest)
		oldEnd := start + child.End()

		const timecodeWidth = 8
		newChild := WriteTag(nil, TagTimecode, uint64(timecodeWidth))
		newChild = writeFixedUint(newChild, uint64(adjusted), timecodeWidth)

		newPayload := make([]byte, 0, len(payload)+len(newChild))
		newPayload = append(newPayload, payload[:start]...)
		newPayload = append(newPayload, newChild...)
		newPayload = append(newPayload, payload[oldEnd:]...)

		out := WriteTag(nil, TagCluster, clusterLengthFor(tag.Length, newPayload))
		out = append(out, newPayload...)
		return out, nil
	}

	return cluster, nil
}

// adjustTimecodeValue applies the running shift to one producer timecode,
// widening the shift if the producer's clock went backwards (a segment
// restart) so output stays non-decreasing. shifted reports whether
// state.shift is nonzero after this call — the caller's signal to
// re-encode the cluster at all.
func adjustTimecodeValue(state *TimecodeState, producerTC int64) (adjusted int64, shifted bool) {
	adjusted = producerTC + state.shift
	if adjusted < state.lastOut {
		state.shift = state.lastOut - producerTC
		adjusted = producerTC + state.shift
	}
	state.lastOut = adjusted
	return adjusted, state.shift != 0
}

func clusterLengthFor(oldLength uint64, newPayload []byte) uint64 {
	if oldLength == Indeterminate {
		return Indeterminate
	}
	return uint64(len(newPayload))
}
