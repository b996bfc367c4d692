package relay

import "github.com/webmrelay/webmrelay/internal/ebml"

// consumeInfo rewrites and captures a fully-buffered Info element:
// TimecodeScale is validated, Duration is stripped, everything else
// passes through unchanged. The rewritten element is also forwarded to
// every already-connected subscriber as header bytes.
func (b *Broadcast) consumeInfo(view []byte, tag ebml.Tag) (bool, error) {
	if tag.Length == ebml.Indeterminate {
		return false, ErrMalformedEBML
	}
	if tag.Length > maxMetadataTagSize {
		return false, ErrTagTooLarge
	}
	full, err := ebml.ParseTag(view)
	if err != nil {
		return false, err
	}
	if full.Consumed == 0 {
		return false, nil
	}

	rewritten, err := rewriteInfo(full.Contents(view))
	if err != nil {
		return false, err
	}

	chunk := ebml.WriteTag(nil, ebml.TagInfo, uint64(len(rewritten)))
	chunk = append(chunk, rewritten...)
	b.preamble = append(b.preamble, chunk...)
	b.forwardHeader(chunk)
	b.buf.Shift(full.End())
	return true, nil
}

// rewriteInfo validates TimecodeScale and strips Duration from an Info
// element's payload, leaving every other child untouched.
func rewriteInfo(payload []byte) ([]byte, error) {
	var out []byte
	sawScale := false

	rest := payload
	for len(rest) > 0 {
		child, err := ebml.ParseTag(rest)
		if err != nil {
			return nil, err
		}
		if child.Consumed == 0 {
			return nil, ebml.ErrMalformedEBML
		}

		switch child.ID {
		case ebml.TagTimecodeScale:
			if ebml.ReadFixedUint(child.Contents(rest)) != 1_000_000 {
				return nil, ErrBadTimecodeScale
			}
			sawScale = true
			out = append(out, rest[:child.End()]...)
		case ebml.TagDuration:
			if child.Length > 127 {
				return nil, ErrDurationTooLarge
			}
			void, ok := voidOfSize(child.Consumed + int(child.Length))
			if !ok {
				return nil, ErrDurationTooLarge
			}
			out = append(out, void...)
		default:
			out = append(out, rest[:child.End()]...)
		}
		rest = rest[child.End():]
	}

	if !sawScale {
		return nil, ErrBadTimecodeScale
	}
	return out, nil
}

// voidOfSize returns a Void element whose encoded header+payload occupies
// exactly total bytes, or false if no header width can make that exact.
func voidOfSize(total int) ([]byte, bool) {
	for headerLen := 2; headerLen <= total && headerLen <= 9; headerLen++ {
		payloadLen := total - headerLen
		tag := ebml.WriteTag(nil, ebml.TagVoid, uint64(payloadLen))
		if len(tag) == headerLen {
			return append(tag, make([]byte, payloadLen)...), true
		}
	}
	return nil, false
}
