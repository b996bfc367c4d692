package ebml

import "errors"

// Indeterminate is the EBML sentinel length value meaning "extends until
// the next tag of the same level," used by Segment and Cluster.
const Indeterminate uint64 = 0x00FFFFFFFFFFFFFF

// ErrInvalidVarint is returned when a VarInt's first byte is zero, which
// has no valid EBML interpretation (the reference implementation treats
// this case as undefined behavior; this package rejects it outright).
var ErrInvalidVarint = errors.New("ebml: invalid varint: zero length-marker byte")

// indeterminateMarkers[L-1] is the all-ones data value of an L-byte
// VarInt, with the length-marker bit already removed; ParseUint decodes
// it to Indeterminate.
var indeterminateMarkers = [8]uint64{
	0x7F, 0x3FFF, 0x1FFFFF, 0x0FFFFFFF,
	0x07FFFFFFFF, 0x03FFFFFFFFFF, 0x01FFFFFFFFFFFF, 0x00FFFFFFFFFFFFFF,
}

// Uint is the result of decoding one EBML VarInt. Consumed is zero, with a
// nil error, when data held too few bytes to finish decoding — the normal
// "wait for more input" condition, distinct from a parse error.
type Uint struct {
	Consumed int
	Value    uint64
}

// UintSize returns the encoded length, in bytes, of a VarInt whose leading
// byte is first: one more than the position of its highest set bit. A
// leading byte of 0 has no valid length and is rejected.
func UintSize(first byte) (int, error) {
	if first == 0 {
		return 0, ErrInvalidVarint
	}
	size := 1
	for first&0x80 == 0 {
		size++
		first <<= 1
	}
	return size, nil
}

// ParseUint decodes one VarInt from the front of data. With keepMarker set
// (used for tag IDs), the length-marker bit is left in Value. Otherwise
// (used for lengths and all other integers) the marker bit is masked out,
// and a value whose bits are all-ones for its length decodes to
// Indeterminate.
func ParseUint(data []byte, keepMarker bool) (Uint, error) {
	if len(data) == 0 {
		return Uint{}, nil
	}
	size, err := UintSize(data[0])
	if err != nil {
		return Uint{}, err
	}
	if len(data) < size {
		return Uint{}, nil
	}

	var v uint64
	for _, b := range data[:size] {
		v = v<<8 | uint64(b)
	}

	if !keepMarker {
		v &^= uint64(1) << uint(7*size)
		if indeterminateMarkers[size-1] == v {
			return Uint{Consumed: size, Value: Indeterminate}, nil
		}
	}
	return Uint{Consumed: size, Value: v}, nil
}

// byteWidth returns the number of bytes needed to hold v with no leading
// zero byte (minimum 1).
func byteWidth(v uint64) int {
	n := 1
	for v >= 1<<8 {
		v >>= 8
		n++
	}
	return n
}

func writeFixedUint(dst []byte, v uint64, size int) []byte {
	for i := size - 1; i >= 0; i-- {
		dst = append(dst, byte(v>>uint(8*i)))
	}
	return dst
}

// ReadFixedUint decodes data as a plain big-endian unsigned integer, with
// no length-marker bit. This is the encoding EBML uses for an "unsigned
// integer" element's content (TimecodeScale, Timecode, TrackNumber,
// PixelWidth, and similar) — the VarInt marker convention only applies to
// tag ID and length headers, never to element payloads.
func ReadFixedUint(data []byte) uint64 {
	var v uint64
	for _, b := range data {
		v = v<<8 | uint64(b)
	}
	return v
}

// WriteUint appends v to dst, EBML-VarInt-encoded at the minimum possible
// length. With hasMarker set, v is written as-is (v is expected to already carry
// its own length-marker bit, as tag ID constants do). With marker unset,
// the minimal length is chosen such that v fits in the available data
// bits *and* does not collide with that length's Indeterminate sentinel
// pattern — if it would, the value is padded to one byte longer, matching
// the source implementation's sentinel-avoidance rule. v must not be
// Indeterminate itself; callers encode an indeterminate length directly.
func WriteUint(dst []byte, v uint64, hasMarker bool) []byte {
	if hasMarker {
		return writeFixedUint(dst, v, byteWidth(v))
	}

	size := 1
	for v >= (uint64(1)<<uint(7*size))-1 {
		size++
	}
	marker := uint64(1) << uint(7*size)
	return writeFixedUint(dst, v|marker, size)
}
