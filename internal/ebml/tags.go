package ebml

// Tag IDs for the WebM subset of Matroska used by the relay. IDs retain
// their length-marker bit, matching the wire encoding (e.g. TagCluster's
// marker bit is the leading 0x1). See https://www.matroska.org/technical/specs/index.html
const (
	TagVoid          uint32 = 0xEC
	TagEBML          uint32 = 0x1A45DFA3
	TagSegment       uint32 = 0x18538067
	TagSeekHead      uint32 = 0x114D9B74
	TagInfo          uint32 = 0x1549A966
	TagTimecodeScale uint32 = 0x2AD7B1
	TagDuration      uint32 = 0x4489
	TagTracks        uint32 = 0x1654AE6B
	TagTrackEntry    uint32 = 0xAE
	TagTrackNumber   uint32 = 0xD7
	TagTrackType     uint32 = 0x83
	TagVideo         uint32 = 0xE0
	TagPixelWidth    uint32 = 0xB0
	TagPixelHeight   uint32 = 0xBA
	TagAudio         uint32 = 0xE1
	TagCluster       uint32 = 0x1F43B675
	TagTimecode      uint32 = 0xE7
	TagPrevSize      uint32 = 0xAB
	TagSimpleBlock   uint32 = 0xA3
	TagBlockGroup    uint32 = 0xA0
	TagBlock         uint32 = 0xA1
	TagReferenceBlock uint32 = 0xFB
	TagCues          uint32 = 0x1C53BB6B
	TagChapters      uint32 = 0x1043A770
	TagTags          uint32 = 0x1254C367
)

// TrackTypeVideo and TrackTypeAudio are the TrackType payload values
// defined by the Matroska spec.
const (
	TrackTypeVideo uint64 = 1
	TrackTypeAudio uint64 = 2
)
