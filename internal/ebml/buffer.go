package ebml

// bufferIncrement is the granularity at which Buffer grows its backing
// array, matching the source implementation's EBML_BUFFER_INCREMENT.
const bufferIncrement = 4096

// Buffer is a growable byte buffer tuned for the relay's access pattern:
// bytes are appended at the tail as they arrive from the producer, and
// consumed from the head as complete tags are parsed off the front. Shift
// is amortized O(1) — it only adjusts an offset — and the backing array is
// only copied down when Append needs room that the offset has freed up.
type Buffer struct {
	data   []byte
	offset int // start of the live region within data
	size   int // length of the live region
}

// Append copies p onto the tail of the live region, growing and compacting
// the backing array as needed.
func (b *Buffer) Append(p []byte) {
	if len(p) == 0 {
		return
	}

	free := cap(b.data) - b.offset - b.size
	if len(p) > free {
		if b.offset > 0 {
			copy(b.data, b.data[b.offset:b.offset+b.size])
			b.offset = 0
			free = cap(b.data) - b.size
		}
		if len(p) > free {
			newCap := roundUp(b.size+len(p), bufferIncrement)
			grown := make([]byte, b.size, newCap)
			copy(grown, b.data[b.offset:b.offset+b.size])
			b.data = grown
			b.offset = 0
		}
	}

	b.data = append(b.data[:b.offset+b.size], p...)
	b.size += len(p)
}

// View returns the current live region. The returned slice is only valid
// until the next call to Append or Clear.
func (b *Buffer) View() []byte {
	return b.data[b.offset : b.offset+b.size]
}

// Len returns the number of live bytes.
func (b *Buffer) Len() int {
	return b.size
}

// Shift discards the first n bytes of the live region.
func (b *Buffer) Shift(n int) {
	if n <= 0 {
		return
	}
	if n > b.size {
		n = b.size
	}
	b.offset += n
	b.size -= n
	if b.size == 0 {
		b.offset = 0
	}
}

// Clear releases the backing array and empties the buffer.
func (b *Buffer) Clear() {
	b.data = nil
	b.offset = 0
	b.size = 0
}

func roundUp(n, multiple int) int {
	return (n + multiple - 1) / multiple * multiple
}
