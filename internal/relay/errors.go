package relay

import (
	"errors"

	"github.com/webmrelay/webmrelay/internal/ebml"
)

var (
	// ErrTrackOverflow is ebml.ErrTrackOverflow, re-exported so callers
	// that only import relay can still errors.Is against it.
	ErrTrackOverflow = ebml.ErrTrackOverflow

	// ErrMalformedEBML is ebml.ErrMalformedEBML, re-exported for the same
	// reason.
	ErrMalformedEBML = ebml.ErrMalformedEBML

	// ErrTagTooLarge is returned when a top-level tag declares a length
	// beyond what the broadcast is willing to buffer, either because it's
	// metadata that should never be this big (SeekHead, Tracks, Cues) or
	// because a Cluster has grown past the configured maximum.
	ErrTagTooLarge = errors.New("relay: tag length exceeds the configured maximum")

	// ErrUnknownTag is returned when a top-level element inside the
	// Segment is not one this relay understands. Unlike general-purpose
	// EBML readers, the relay does not skip unknown elements: it cannot
	// safely rewrite a stream it only partially understands.
	ErrUnknownTag = errors.New("relay: unrecognized top-level element")

	// ErrBadTimecodeScale is returned when Info.TimecodeScale is missing
	// or not exactly 1_000_000, the only value WebM permits and the only
	// value the timecode rewriter in internal/ebml assumes.
	ErrBadTimecodeScale = errors.New("relay: TimecodeScale must be 1000000")

	// ErrDurationTooLarge is returned when Info.Duration is too large to
	// overwrite in place with an equal-size Void element.
	ErrDurationTooLarge = errors.New("relay: Duration element too large to strip")

	// ErrClosed is returned by Send once Stop has been called.
	ErrClosed = errors.New("relay: broadcast is stopped")
)
