package ebml

import "testing"

func TestParseTagHeaderAndPayload(t *testing.T) {
	t.Parallel()

	var data []byte
	data = WriteTag(data, TagTimecodeScale, 3)
	data = append(data, 0x0F, 0x42, 0x40)

	tag, err := ParseTag(data)
	if err != nil {
		t.Fatalf("ParseTag() error = %v", err)
	}
	if tag.ID != TagTimecodeScale || tag.Length != 3 {
		t.Fatalf("ParseTag() = %+v, want ID=TagTimecodeScale Length=3", tag)
	}
	if got, want := tag.Contents(data), []byte{0x0F, 0x42, 0x40}; string(got) != string(want) {
		t.Fatalf("Contents() = %x, want %x", got, want)
	}
	if tag.End() != len(data) {
		t.Fatalf("End() = %d, want %d", tag.End(), len(data))
	}
}

func TestParseTagIncompletePayload(t *testing.T) {
	t.Parallel()

	var full []byte
	full = WriteTag(full, TagDuration, 8)
	full = append(full, make([]byte, 8)...)

	// Header complete, payload truncated.
	truncated := full[:len(full)-3]

	header, err := ParseTagHeader(truncated)
	if err != nil || header.Consumed == 0 {
		t.Fatalf("ParseTagHeader() = %+v, %v, want a complete header", header, err)
	}

	tag, err := ParseTag(truncated)
	if err != nil {
		t.Fatalf("ParseTag() error = %v", err)
	}
	if tag.Consumed != 0 {
		t.Fatalf("ParseTag() on truncated payload = %+v, want incomplete", tag)
	}
}

func TestParseTagHeaderIncomplete(t *testing.T) {
	t.Parallel()

	full := WriteTag(nil, TagCluster, Indeterminate)
	for n := 0; n < len(full); n++ {
		tag, err := ParseTagHeader(full[:n])
		if err != nil {
			t.Fatalf("ParseTagHeader(%d bytes) error = %v", n, err)
		}
		if tag.Consumed != 0 {
			t.Fatalf("ParseTagHeader(%d bytes) = %+v, want incomplete", n, tag)
		}
	}

	tag, err := ParseTagHeader(full)
	if err != nil {
		t.Fatalf("ParseTagHeader() error = %v", err)
	}
	if tag.ID != TagCluster || tag.Length != Indeterminate {
		t.Fatalf("ParseTagHeader() = %+v, want ID=TagCluster Length=Indeterminate", tag)
	}
}

func TestParseTagRejectsZeroFirstByte(t *testing.T) {
	t.Parallel()

	_, err := ParseTag([]byte{0x00, 0x81, 0x01})
	if err == nil {
		t.Fatalf("ParseTag() error = nil, want ErrInvalidVarint")
	}
}

func FuzzParseTag(f *testing.F) {
	f.Add(WriteTag(nil, TagSimpleBlock, 5))
	f.Add(WriteTag(nil, TagCluster, Indeterminate))
	f.Add([]byte{0x00})
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		tag, err := ParseTag(data)
		if err != nil {
			return
		}
		if tag.Consumed == 0 {
			return
		}
		if tag.Length != Indeterminate && uint64(tag.Consumed)+tag.Length > uint64(len(data)) {
			t.Fatalf("ParseTag() claims complete but payload exceeds input: %+v len(data)=%d", tag, len(data))
		}
	})
}
