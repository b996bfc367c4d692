package relay

import "github.com/webmrelay/webmrelay/internal/ebml"

// consumeTracks captures a fully-buffered Tracks element verbatim into the
// preamble, forwards it to every already-connected subscriber as header
// bytes, and extracts the audio/video metadata exposed via TrackInfo.
func (b *Broadcast) consumeTracks(view []byte, tag ebml.Tag) (bool, error) {
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

	info, err := parseTracks(full.Contents(view))
	if err != nil {
		return false, err
	}
	b.trackInfo = info

	chunk := view[:full.End()]
	b.preamble = append(b.preamble, chunk...)
	b.forwardHeader(chunk)
	b.sawTracks = true
	b.buf.Shift(full.End())
	return true, nil
}

func parseTracks(payload []byte) (TrackInfo, error) {
	var info TrackInfo

	rest := payload
	for len(rest) > 0 {
		entry, err := ebml.ParseTag(rest)
		if err != nil {
			return TrackInfo{}, err
		}
		if entry.Consumed == 0 {
			return TrackInfo{}, ebml.ErrMalformedEBML
		}
		if entry.ID == ebml.TagTrackEntry {
			if err := scanTrackEntry(entry.Contents(rest), &info); err != nil {
				return TrackInfo{}, err
			}
		}
		rest = rest[entry.End():]
	}
	return info, nil
}

func scanTrackEntry(payload []byte, info *TrackInfo) error {
	var trackNumber, trackType uint64
	var width, height int

	rest := payload
	for len(rest) > 0 {
		child, err := ebml.ParseTag(rest)
		if err != nil {
			return err
		}
		if child.Consumed == 0 {
			return ebml.ErrMalformedEBML
		}

		switch child.ID {
		case ebml.TagTrackNumber:
			trackNumber = ebml.ReadFixedUint(child.Contents(rest))
		case ebml.TagTrackType:
			trackType = ebml.ReadFixedUint(child.Contents(rest))
		case ebml.TagVideo:
			scanVideo(child.Contents(rest), &width, &height)
		}
		rest = rest[child.End():]
	}

	if trackNumber > 63 {
		return ebml.ErrTrackOverflow
	}
	switch trackType {
	case ebml.TrackTypeAudio:
		info.HasAudio = true
	case ebml.TrackTypeVideo:
		info.HasVideo = true
		info.Width, info.Height = width, height
	}
	return nil
}

func scanVideo(payload []byte, width, height *int) {
	rest := payload
	for len(rest) > 0 {
		child, err := ebml.ParseTag(rest)
		if err != nil || child.Consumed == 0 {
			return
		}
		switch child.ID {
		case ebml.TagPixelWidth:
			*width = int(ebml.ReadFixedUint(child.Contents(rest)))
		case ebml.TagPixelHeight:
			*height = int(ebml.ReadFixedUint(child.Contents(rest)))
		}
		rest = rest[child.End():]
	}
}
