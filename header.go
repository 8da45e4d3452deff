package blosc

import "encoding/binary"

// Frame layout constants. The fixed 16-byte header is identical between the
// v1 and v2 (extended) frame; v2 appends 16 more bytes of filter-pipeline
// metadata. Both are little-endian throughout.
const (
	HeaderSizeV1 = 16
	HeaderSizeV2 = 32

	// HeaderSize is kept for compatibility with the original single-header
	// API; it names the fixed (v1) portion shared by both frame variants.
	HeaderSize    = HeaderSizeV1
	MinHeaderSize = HeaderSizeV1
)

// Flag bits in byte 2 of the fixed header. The inner codec is recorded in
// the three high bits of the same byte.
const (
	flagDoShuffle    = 0x01
	flagDoBitShuffle = 0x02
	flagMemcpyed     = 0x04
	flagSplit        = 0x08

	flagCodecShift = 5
)

// versionFormatLZ is the wire-format generation recorded for the inner
// codec in byte 1 of the header.
const versionFormatLZ = 1

// extendedHeaderMarker reports whether both shuffle flag bits are set,
// which signals a 32-byte extended header rather than requesting "both"
// filters — the two bits never themselves select a filter in that case.
func extendedHeaderMarker(flags uint8) bool {
	return flags&flagDoShuffle != 0 && flags&flagDoBitShuffle != 0
}

// filterPipelineSlots is the number of filter slots an extended header
// carries.
const filterPipelineSlots = 6

// FilterCode identifies one slot of an extended-header filter pipeline.
type FilterCode uint8

// Filter codes recognized in the extended-header filter pipeline.
const (
	FilterNone       FilterCode = 0
	FilterShuffle    FilterCode = 1
	FilterBitShuffle FilterCode = 2
)

// ExtendedHeader carries the v2-only fields: the 6-slot filter pipeline, the
// authoritative codec code, and per-slot filter metadata.
type ExtendedHeader struct {
	Filters    [filterPipelineSlots]FilterCode
	Codec      uint8
	FilterMeta [filterPipelineSlots]byte
}

// Bytes serializes the extended fields (bytes 16-31 of a v2 frame).
func (e *ExtendedHeader) Bytes() []byte {
	buf := make([]byte, HeaderSizeV2-HeaderSizeV1)
	for i := 0; i < filterPipelineSlots; i++ {
		buf[i] = byte(e.Filters[i])
	}
	buf[6] = e.Codec
	// buf[7] reserved
	for i := 0; i < filterPipelineSlots; i++ {
		buf[8+i] = e.FilterMeta[i]
	}
	// buf[14:16] reserved
	return buf
}

// parseExtendedHeader parses bytes 16-31 of a v2 frame.
func parseExtendedHeader(data []byte) (*ExtendedHeader, error) {
	if len(data) < HeaderSizeV2-HeaderSizeV1 {
		return nil, ErrMalformedInput
	}
	e := &ExtendedHeader{Codec: data[6]}
	for i := 0; i < filterPipelineSlots; i++ {
		e.Filters[i] = FilterCode(data[i])
		e.FilterMeta[i] = data[8+i]
	}
	return e, nil
}

// resolvedFilter reduces an extended-header filter pipeline to a single
// effective filter: only pipelines consisting of one non-NONE filter in
// slot 0 (every other slot NONE), or all slots NONE, are accepted.
// Anything else is rejected as malformed; chained-filter semantics are
// not pinned down, so chained, non-slot-0, and unrecognized filter codes
// are refused rather than guessed at.
func (e *ExtendedHeader) resolvedFilter() (Shuffle, error) {
	for i := 1; i < filterPipelineSlots; i++ {
		if e.Filters[i] != FilterNone {
			return NoShuffle, ErrMalformedInput
		}
	}
	switch e.Filters[0] {
	case FilterNone:
		return NoShuffle, nil
	case FilterShuffle:
		return Shuffle1, nil
	case FilterBitShuffle:
		return BitShuffle, nil
	default:
		return NoShuffle, ErrMalformedInput
	}
}

// filterCodeFor maps a Shuffle mode to its extended-header FilterCode.
func filterCodeFor(mode Shuffle) FilterCode {
	switch mode {
	case Shuffle1:
		return FilterShuffle
	case BitShuffle:
		return FilterBitShuffle
	default:
		return FilterNone
	}
}

// ParseHeader parses the fixed 16-byte header from bytes. It does not
// interpret the extended-header marker; use parseFrameHeader for that.
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSizeV1 {
		return nil, ErrInvalidHeader
	}

	h := &Header{
		Version:    data[0],
		VersionLZ:  data[1],
		Flags:      data[2],
		TypeSize:   data[3],
		NBytesOrig: binary.LittleEndian.Uint32(data[4:8]),
		BlockSize:  binary.LittleEndian.Uint32(data[8:12]),
		NBytesComp: binary.LittleEndian.Uint32(data[12:16]),
	}

	if h.Version != FormatVersion {
		return nil, ErrInvalidVersion
	}

	return h, nil
}

// parseFrameHeader parses the full frame header, returning the extended
// fields when the extended-header marker is present.
func parseFrameHeader(data []byte) (*Header, *ExtendedHeader, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, nil, err
	}
	if !extendedHeaderMarker(h.Flags) {
		return h, nil, nil
	}
	ext, err := parseExtendedHeader(data[HeaderSizeV1:])
	if err != nil {
		return nil, nil, err
	}
	return h, ext, nil
}

// Bytes serializes the fixed 16-byte header.
func (h *Header) Bytes() []byte {
	buf := make([]byte, HeaderSizeV1)
	buf[0] = h.Version
	buf[1] = h.VersionLZ
	buf[2] = h.Flags
	buf[3] = h.TypeSize
	binary.LittleEndian.PutUint32(buf[4:8], h.NBytesOrig)
	binary.LittleEndian.PutUint32(buf[8:12], h.BlockSize)
	binary.LittleEndian.PutUint32(buf[12:16], h.NBytesComp)
	return buf
}

// HasShuffle returns true if byte shuffle is requested by the fixed flags.
func (h *Header) HasShuffle() bool {
	return h.Flags&flagDoShuffle != 0 && !extendedHeaderMarker(h.Flags)
}

// HasBitShuffle returns true if bit shuffle is requested by the fixed flags.
func (h *Header) HasBitShuffle() bool {
	return h.Flags&flagDoBitShuffle != 0 && !extendedHeaderMarker(h.Flags)
}

// IsMemcpy returns true if the frame body is a raw, uncompressed copy.
func (h *Header) IsMemcpy() bool {
	return h.Flags&flagMemcpyed != 0
}

// IsSplit returns true if each block's body is a sequence of one
// length-prefixed stream per byte position rather than a single stream.
func (h *Header) IsSplit() bool {
	return h.Flags&flagSplit != 0
}

// IsExtended returns true if the extended-header marker is set.
func (h *Header) IsExtended() bool {
	return extendedHeaderMarker(h.Flags)
}

// CodecID returns the inner codec recorded in the flag byte's three high
// bits. For extended frames the extended header's codec field is
// authoritative instead.
func (h *Header) CodecID() Codec {
	return Codec(h.Flags >> flagCodecShift)
}

// ShuffleMode returns the filter requested by the fixed-header flags. It
// does not consult the extended header; callers holding an *ExtendedHeader
// should use its resolvedFilter instead.
func (h *Header) ShuffleMode() Shuffle {
	if h.HasBitShuffle() {
		return BitShuffle
	}
	if h.HasShuffle() {
		return Shuffle1
	}
	return NoShuffle
}

// headerSize returns how many header bytes a frame with these flags uses.
func (h *Header) headerSize() int {
	if h.IsExtended() {
		return HeaderSizeV2
	}
	return HeaderSizeV1
}

// --- offset table -----------------------------------------------------

// offsetTableSize returns the byte size of the block-offset table for a
// buffer of nbytes split into blocks of blockSize.
func offsetTableSize(nbytes, blockSize int) int {
	return numBlocks(nbytes, blockSize) * 4
}

// numBlocks returns ceil(nbytes/blockSize), with the convention that an
// empty buffer still occupies one (empty) block.
func numBlocks(nbytes, blockSize int) int {
	if blockSize <= 0 {
		return 0
	}
	n := (nbytes + blockSize - 1) / blockSize
	if n == 0 {
		n = 1
	}
	return n
}

// writeOffsetTable writes the block offset table (one LE uint32 per block)
// into dst, which must be exactly offsetTableSize(...) bytes.
func writeOffsetTable(dst []byte, offsets []uint32) {
	for i, off := range offsets {
		binary.LittleEndian.PutUint32(dst[i*4:i*4+4], off)
	}
}

// readOffsetTable reads count offsets from data.
func readOffsetTable(data []byte, count int) ([]uint32, error) {
	if len(data) < count*4 {
		return nil, ErrMalformedInput
	}
	offsets := make([]uint32, count)
	for i := range offsets {
		offsets[i] = binary.LittleEndian.Uint32(data[i*4 : i*4+4])
	}
	return offsets, nil
}

// --- per-stream framing -------------------------------------------------

// putStreamLenPrefix writes a stream's 4-byte little-endian length prefix.
func putStreamLenPrefix(dst []byte, length int) {
	binary.LittleEndian.PutUint32(dst, uint32(length))
}

// readStream reads one length-prefixed stream payload starting at offset
// within data, returning the payload slice and the offset just past it.
func readStream(data []byte, offset int) (payload []byte, next int, err error) {
	if offset < 0 || offset+4 > len(data) {
		return nil, 0, ErrMalformedInput
	}
	length := binary.LittleEndian.Uint32(data[offset : offset+4])
	start := offset + 4
	end := start + int(length)
	if end < start || end > len(data) {
		return nil, 0, ErrMalformedInput
	}
	return data[start:end], end, nil
}
