package ebml

import (
	"bytes"
	"testing"
)

func TestBufferAppendView(t *testing.T) {
	t.Parallel()

	var b Buffer
	b.Append([]byte("hello "))
	b.Append([]byte("world"))

	if got := string(b.View()); got != "hello world" {
		t.Fatalf("View() = %q, want %q", got, "hello world")
	}
	if b.Len() != 11 {
		t.Fatalf("Len() = %d, want 11", b.Len())
	}
}

func TestBufferShiftThenAppend(t *testing.T) {
	t.Parallel()

	var b Buffer
	b.Append([]byte("abcdef"))
	b.Shift(3)
	if got := string(b.View()); got != "def" {
		t.Fatalf("View() after Shift(3) = %q, want %q", got, "def")
	}

	b.Append([]byte("ghi"))
	if got := string(b.View()); got != "defghi" {
		t.Fatalf("View() after Append = %q, want %q", got, "defghi")
	}
}

func TestBufferShiftToEmptyLeavesNoLiveRegion(t *testing.T) {
	t.Parallel()

	var b Buffer
	total := 0
	for i := 0; i < 37; i++ {
		chunk := bytes.Repeat([]byte{byte(i)}, i+1)
		b.Append(chunk)
		total += len(chunk)
	}

	b.Shift(total)
	if b.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", b.Len())
	}
	if len(b.View()) != 0 {
		t.Fatalf("View() = %v, want empty", b.View())
	}
}

func TestBufferForcesCompaction(t *testing.T) {
	t.Parallel()

	var b Buffer
	b.Append(bytes.Repeat([]byte{1}, 4090))
	b.Shift(4080)
	// Only 6 bytes are free past the live region of the 4096-byte backing
	// array, but plenty are free in front of the offset; Append should
	// reuse them via compaction rather than reallocating.
	b.Append(bytes.Repeat([]byte{2}, 50))

	want := append(bytes.Repeat([]byte{1}, 10), bytes.Repeat([]byte{2}, 50)...)
	if !bytes.Equal(b.View(), want) {
		t.Fatalf("View() = %v, want %v", b.View(), want)
	}
}

func TestBufferClear(t *testing.T) {
	t.Parallel()

	var b Buffer
	b.Append([]byte("data"))
	b.Clear()

	if b.Len() != 0 || len(b.View()) != 0 {
		t.Fatalf("buffer not empty after Clear: len=%d view=%v", b.Len(), b.View())
	}

	b.Append([]byte("more"))
	if got := string(b.View()); got != "more" {
		t.Fatalf("View() after Clear+Append = %q, want %q", got, "more")
	}
}
