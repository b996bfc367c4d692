package ebml

// Tag is the decoded id+length header of one EBML element. Consumed is the
// number of header bytes (id VarInt plus length VarInt); the element's
// payload, if any, follows immediately.
type Tag struct {
	Consumed int
	ID       uint32
	Length   uint64
}

// ParseTagHeader decodes a tag's id and length from the front of data,
// without requiring that the tag's payload also be present. Consumed is
// zero, with a nil error, if data does not yet hold a complete header.
func ParseTagHeader(data []byte) (Tag, error) {
	id, err := ParseUint(data, true)
	if err != nil {
		return Tag{}, err
	}
	if id.Consumed == 0 {
		return Tag{}, nil
	}

	length, err := ParseUint(data[id.Consumed:], false)
	if err != nil {
		return Tag{}, err
	}
	if length.Consumed == 0 {
		return Tag{}, nil
	}

	return Tag{
		Consumed: id.Consumed + length.Consumed,
		ID:       uint32(id.Value),
		Length:   length.Value,
	}, nil
}

// ParseTag decodes a tag header and additionally requires that its full
// payload already be present in data — i.e. that the caller could safely
// slice out Contents. A tag with an Indeterminate length (Segment,
// Cluster) is always considered complete at the header, since its payload
// boundary is discovered incrementally by the caller rather than declared
// up front.
func ParseTag(data []byte) (Tag, error) {
	tag, err := ParseTagHeader(data)
	if err != nil || tag.Consumed == 0 {
		return Tag{}, err
	}
	if tag.Length != Indeterminate && uint64(tag.Consumed)+tag.Length > uint64(len(data)) {
		return Tag{}, nil
	}
	return tag, nil
}

// Contents returns tag's payload, assuming tag was decoded from the start
// of data by ParseTag (so the full payload is present and Length is not
// Indeterminate).
func (t Tag) Contents(data []byte) []byte {
	return data[t.Consumed : uint64(t.Consumed)+t.Length]
}

// End returns the offset within data one past tag's payload.
func (t Tag) End() int {
	return t.Consumed + int(t.Length)
}

// WriteTag appends the EBML-encoded header for a tag with the given id and
// length to dst. An Indeterminate length is written as the canonical
// single-byte 0xFF marker, matching how a live encoder opens a Segment or
// Cluster whose size isn't known yet.
func WriteTag(dst []byte, id uint32, length uint64) []byte {
	dst = WriteUint(dst, uint64(id), true)
	if length == Indeterminate {
		return append(dst, 0xFF)
	}
	return WriteUint(dst, length, false)
}
