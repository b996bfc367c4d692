// Package ebml implements the subset of the EBML (Extensible Binary Meta
// Language) binary format needed to parse and rewrite a live WebM byte
// stream: variable-length integers, tag headers, and the two cluster
// rewriting passes (reference-frame stripping and timecode-monotonicity
// enforcement) that make a relayed stream tolerable to mainstream decoders.
//
// This package has no notion of a producer, a subscriber, or a network
// connection — it operates purely on byte slices. [Buffer] is the growable
// input buffer; [ParseTag] and [ParseUint] are the codec; [StripReferenceFrames]
// and [AdjustTimecode] are the rewriting passes.
package ebml
