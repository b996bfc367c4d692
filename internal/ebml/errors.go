package ebml

import "errors"

var (
	// ErrMalformedEBML is returned when a rewriting pass encounters a
	// structurally invalid element it cannot safely skip over, such as a
	// BlockGroup with no Block child.
	ErrMalformedEBML = errors.New("ebml: malformed element")

	// ErrTrackOverflow is returned when a Block or SimpleBlock references
	// a track number of 64 or greater. The relay tracks per-track
	// keyframe state in a uint64 bitmask, so track numbers are capped at
	// 63.
	ErrTrackOverflow = errors.New("ebml: track number exceeds supported range")
)
