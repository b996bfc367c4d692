package ebml

import (
	"bytes"
	"testing"
)

// appendTag is a small test helper building a tag+payload byte slice.
func appendTag(id uint32, payload []byte) []byte {
	return append(WriteTag(nil, id, uint64(len(payload))), payload...)
}

func blockGroup(track uint64, timecode int16, reference bool) []byte {
	blockPayload := WriteUint(nil, track, false)
	blockPayload = append(blockPayload, byte(timecode>>8), byte(timecode), 0x00)
	children := appendTag(TagBlock, blockPayload)
	if reference {
		children = append(children, appendTag(TagReferenceBlock, []byte{0x81})...)
	}
	return appendTag(TagBlockGroup, children)
}

func TestStripReferenceFramesDropsUntilKeyframe(t *testing.T) {
	t.Parallel()

	var cluster []byte
	cluster = append(cluster, appendTag(TagTimecode, []byte{0x00})...)
	cluster = append(cluster, simpleBlockTag(0, 0, false)...) // delta before any keyframe: dropped
	cluster = append(cluster, simpleBlockTag(0, 1, true)...)  // keyframe: kept, opens the gate
	cluster = append(cluster, simpleBlockTag(0, 2, false)...) // delta after keyframe: kept

	var seen uint64
	out, kept, err := StripReferenceFrames(cluster, &seen)
	if err != nil {
		t.Fatalf("StripReferenceFrames() error = %v", err)
	}
	if !kept {
		t.Fatalf("kept = false, want true")
	}

	want := append(append([]byte{}, appendTag(TagTimecode, []byte{0x00})...),
		append(simpleBlockTag(0, 1, true), simpleBlockTag(0, 2, false)...)...)
	if !bytes.Equal(out, want) {
		t.Fatalf("StripReferenceFrames() = %x, want %x", out, want)
	}
	if seen&1 == 0 {
		t.Fatalf("seen bitmask = %#x, want bit 0 set", seen)
	}
}

func TestStripReferenceFramesBlockGroupWithoutReferenceIsKeyframe(t *testing.T) {
	t.Parallel()

	cluster := append([]byte{}, blockGroup(2, 0, true)...) // has ReferenceBlock: delta, dropped pre-gate
	cluster = append(cluster, blockGroup(2, 1, false)...)   // no ReferenceBlock: keyframe

	var seen uint64
	out, kept, err := StripReferenceFrames(cluster, &seen)
	if err != nil {
		t.Fatalf("StripReferenceFrames() error = %v", err)
	}
	if !kept {
		t.Fatalf("kept = false, want true")
	}
	want := blockGroup(2, 1, false)
	if !bytes.Equal(out, want) {
		t.Fatalf("StripReferenceFrames() = %x, want %x", out, want)
	}
	if seen != 1<<2 {
		t.Fatalf("seen = %#x, want bit 2 set", seen)
	}
}

func TestStripReferenceFramesNoKeyframeLeavesKeptFalse(t *testing.T) {
	t.Parallel()

	cluster := append([]byte{}, appendTag(TagTimecode, []byte{0x00})...)
	cluster = append(cluster, simpleBlockTag(0, 0, false)...) // delta, no keyframe seen yet

	var seen uint64
	out, kept, err := StripReferenceFrames(cluster, &seen)
	if err != nil {
		t.Fatalf("StripReferenceFrames() error = %v", err)
	}
	if kept {
		t.Fatalf("kept = true, want false: no block passed the keyframe gate")
	}
	want := appendTag(TagTimecode, []byte{0x00})
	if !bytes.Equal(out, want) {
		t.Fatalf("StripReferenceFrames() = %x, want %x (Timecode only)", out, want)
	}
}

func TestStripReferenceFramesDropsPrevSize(t *testing.T) {
	t.Parallel()

	cluster := append([]byte{}, appendTag(TagTimecode, []byte{0x00})...)
	cluster = append(cluster, appendTag(TagPrevSize, writeFixedUint(nil, 512, 4))...)
	cluster = append(cluster, simpleBlockTag(0, 0, true)...)

	var seen uint64
	out, kept, err := StripReferenceFrames(cluster, &seen)
	if err != nil {
		t.Fatalf("StripReferenceFrames() error = %v", err)
	}
	if !kept {
		t.Fatalf("kept = false, want true")
	}
	if bytes.Contains(out, appendTag(TagPrevSize, writeFixedUint(nil, 512, 4))) {
		t.Fatalf("StripReferenceFrames() = %x, still contains PrevSize", out)
	}
	want := append(append([]byte{}, appendTag(TagTimecode, []byte{0x00})...), simpleBlockTag(0, 0, true)...)
	if !bytes.Equal(out, want) {
		t.Fatalf("StripReferenceFrames() = %x, want %x", out, want)
	}
}

func TestStripReferenceFramesRejectsOverflowTrack(t *testing.T) {
	t.Parallel()

	cluster := simpleBlockTag(64, 0, true)
	var seen uint64
	if _, _, err := StripReferenceFrames(cluster, &seen); err != ErrTrackOverflow {
		t.Fatalf("StripReferenceFrames() error = %v, want ErrTrackOverflow", err)
	}
}

func TestAdjustTimecodeMonotonicAcrossRestart(t *testing.T) {
	t.Parallel()

	var state TimecodeState
	c1 := appendTag(TagCluster, appendTag(TagTimecode, []byte{0x00, 0x64})) // 100
	c2 := appendTag(TagCluster, appendTag(TagTimecode, []byte{0x00, 0xC8})) // 200
	c3 := appendTag(TagCluster, appendTag(TagTimecode, []byte{0x00, 0x05})) // 5: producer restarted

	out1, err := AdjustTimecode(&state, c1)
	if err != nil {
		t.Fatalf("AdjustTimecode() error = %v", err)
	}
	out2, err := AdjustTimecode(&state, c2)
	if err != nil {
		t.Fatalf("AdjustTimecode() error = %v", err)
	}
	out3, err := AdjustTimecode(&state, c3)
	if err != nil {
		t.Fatalf("AdjustTimecode() error = %v", err)
	}

	if !bytes.Equal(out1, c1) {
		t.Fatalf("AdjustTimecode() on the first cluster rewrote it, want unchanged (shift is still 0): %x", out1)
	}
	if !bytes.Equal(out2, c2) {
		t.Fatalf("AdjustTimecode() on the second cluster rewrote it, want unchanged (shift is still 0): %x", out2)
	}

	tc1 := readClusterTimecode(t, out1)
	tc2 := readClusterTimecode(t, out2)
	tc3 := readClusterTimecode(t, out3)

	if tc1 != 100 || tc2 != 200 {
		t.Fatalf("tc1=%d tc2=%d, want 100 200", tc1, tc2)
	}
	// Non-decreasing, not strictly increasing: the floor after a restart
	// is exactly the last timecode emitted before it, not one past it.
	if tc3 != tc2 {
		t.Fatalf("tc3=%d, want exactly tc2=%d after producer restart", tc3, tc2)
	}
}

func readClusterTimecode(t *testing.T, cluster []byte) uint64 {
	t.Helper()
	tag, err := ParseTag(cluster)
	if err != nil || tag.Consumed == 0 {
		t.Fatalf("ParseTag(cluster) failed: %v", err)
	}
	child, err := ParseTag(tag.Contents(cluster))
	if err != nil || child.Consumed == 0 || child.ID != TagTimecode {
		t.Fatalf("expected Timecode child, got %+v err=%v", child, err)
	}
	return ReadFixedUint(child.Contents(tag.Contents(cluster)))
}

// simpleBlockTag builds a complete SimpleBlock tag+payload.
func simpleBlockTag(track uint64, timecode int16, keyframe bool) []byte {
	var flags byte
	if keyframe {
		flags = 0x80
	}
	payload := WriteUint(nil, track, false)
	payload = append(payload, byte(timecode>>8), byte(timecode), flags)
	return appendTag(TagSimpleBlock, payload)
}
