package blosc

import (
	"bytes"
	"fmt"
	"math"
)

// checkBitshuffleAlignment reports ErrBitshuffleAlignment when bitshuffle
// was requested over a block whose element count is not a multiple of 8.
// Both compression and decompression run this check per block, since the
// planner does not align block sizes to a multiple of 8 elements and the
// final (possibly short) block can also violate the precondition on its own.
func checkBitshuffleAlignment(blockLen, typeSize int, filter Shuffle) error {
	if filter == BitShuffle && !bitshuffleDivisible(blockLen, typeSize) {
		return ErrBitshuffleAlignment
	}
	return nil
}

// compressBuffer is the multi-block compression driver: plan the block
// size and split-streams decision once, encode each block independently,
// and fall back to a single memcpy frame if level 0 was requested or if
// any block fails to compress smaller than its input. One failing block
// aborts the whole buffer rather than being stored raw alongside its
// compressed siblings.
func compressBuffer(data []byte, opts Options) ([]byte, error) {
	n := len(data)
	if n == 0 {
		return nil, ErrInvalidData
	}
	if uint64(n) > math.MaxUint32-HeaderSizeV1 {
		// nbytes and cbytes are 32-bit header fields.
		return nil, ErrDataTooLarge
	}

	level := clampLevel(opts.Level)
	typeSize := opts.TypeSize
	if typeSize < 1 {
		typeSize = 1
	}

	compressor, ok := GetCodec(opts.Codec)
	if !ok || opts.Codec > 7 {
		// The codec code has to fit the flag byte's three high bits.
		return nil, fmt.Errorf("%w: %s", ErrInvalidCodec, opts.Codec)
	}

	if forceMemcpy(level) {
		return buildMemcpyFrame(data, opts.Codec, typeSize), nil
	}

	plan := planBlock(PlannerConfig{
		Level:      level,
		TypeSize:   typeSize,
		BufferSize: n,
		Codec:      opts.Codec,
		Filter:     opts.Shuffle,
	})
	blockSize := plan.BlockSize
	if opts.BlockSize > 0 {
		blockSize = opts.BlockSize
	}
	if blockSize <= 0 || blockSize > n {
		blockSize = n
	}
	// A caller-forced block size can shrink the per-stream length below
	// what the split rule requires; re-check with the final block size.
	if plan.Split && blockSize/typeSize < minSplitStreamLen {
		plan.Split = false
	}

	nb := numBlocks(n, blockSize)
	offsets := make([]uint32, nb)
	var body bytes.Buffer

	// Offset-table entries are byte offsets from the start of the frame,
	// so every entry is counted from frameBodyStart, not from the start
	// of body.
	frameBodyStart := HeaderSizeV1 + offsetTableSize(n, blockSize)

	for i := 0; i < nb; i++ {
		start := i * blockSize
		end := start + blockSize
		if end > n {
			end = n
		}
		block := data[start:end]

		if err := checkBitshuffleAlignment(len(block), typeSize, opts.Shuffle); err != nil {
			return nil, err
		}

		payload, raw := encodeBlock(block, typeSize, opts.Shuffle, plan.Split, compressor, level)
		if raw {
			// Any block that does not shrink aborts the whole buffer,
			// which is re-emitted verbatim.
			return buildMemcpyFrame(data, opts.Codec, typeSize), nil
		}
		if uint64(frameBodyStart)+uint64(body.Len())+uint64(len(payload)) > math.MaxUint32 {
			return nil, ErrDataTooLarge
		}

		offsets[i] = uint32(frameBodyStart + body.Len())
		body.Write(payload)
	}

	flags := uint8(opts.Codec) << flagCodecShift
	switch opts.Shuffle {
	case Shuffle1:
		flags |= flagDoShuffle
	case BitShuffle:
		flags |= flagDoBitShuffle
	}
	if plan.Split {
		flags |= flagSplit
	}

	h := &Header{
		Version:    FormatVersion,
		VersionLZ:  versionFormatLZ,
		Flags:      flags,
		TypeSize:   uint8(typeSize),
		NBytesOrig: uint32(n),
		BlockSize:  uint32(blockSize),
	}

	offTable := make([]byte, offsetTableSize(n, blockSize))
	writeOffsetTable(offTable, offsets)

	h.NBytesComp = uint32(HeaderSizeV1 + len(offTable) + body.Len())

	out := make([]byte, 0, h.NBytesComp)
	out = append(out, h.Bytes()...)
	out = append(out, offTable...)
	out = append(out, body.Bytes()...)
	return out, nil
}

// encodeBlock filters and codec-compresses one block, falling back to a
// verbatim copy (raw=true) when the codec signals incompressibility or the
// encoded form would not be smaller than the block itself.
func encodeBlock(block []byte, typeSize int, filter Shuffle, split bool, compressor CodecInterface, level int) (payload []byte, raw bool) {
	filtered := applyFilterBlock(block, typeSize, filter)

	var buf bytes.Buffer
	ok := true

	if split {
		n := len(filtered)
		numElements := n / typeSize
		remainder := n % typeSize
		for g := 0; g < typeSize && ok; g++ {
			stream := filtered[g*numElements : (g+1)*numElements]
			ok = appendCompressedStream(&buf, stream, compressor, level)
		}
		if ok && remainder > 0 {
			tail := filtered[numElements*typeSize:]
			ok = appendCompressedStream(&buf, tail, compressor, level)
		}
	} else {
		ok = appendCompressedStream(&buf, filtered, compressor, level)
	}

	if !ok || buf.Len() >= len(block) {
		out := make([]byte, len(block))
		copy(out, block)
		return out, true
	}
	return buf.Bytes(), false
}

// appendCompressedStream writes one length-prefixed codec stream, reporting
// false if the codec declined (errIncompressible) or if the payload plus
// its length prefix would exceed the stream's own size.
func appendCompressedStream(buf *bytes.Buffer, stream []byte, compressor CodecInterface, level int) bool {
	compressed, err := compressor.Compress(stream, level)
	if err != nil || len(compressed)+4 > len(stream) {
		return false
	}
	var lenPrefix [4]byte
	putStreamLenPrefix(lenPrefix[:], len(compressed))
	buf.Write(lenPrefix[:])
	buf.Write(compressed)
	return true
}

// buildMemcpyFrame wraps data verbatim in a single-block MEMCPYED frame.
func buildMemcpyFrame(data []byte, codec Codec, typeSize int) []byte {
	h := &Header{
		Version:    FormatVersion,
		VersionLZ:  versionFormatLZ,
		Flags:      flagMemcpyed | uint8(codec)<<flagCodecShift,
		TypeSize:   uint8(typeSize),
		NBytesOrig: uint32(len(data)),
		BlockSize:  uint32(len(data)),
		NBytesComp: uint32(HeaderSizeV1 + len(data)),
	}
	out := make([]byte, 0, HeaderSizeV1+len(data))
	out = append(out, h.Bytes()...)
	out = append(out, data...)
	return out
}

// applyFilterBlock applies the forward filter to one block.
func applyFilterBlock(block []byte, typeSize int, mode Shuffle) []byte {
	switch mode {
	case Shuffle1:
		return shuffleBytes(block, typeSize)
	case BitShuffle:
		return bitShuffle(block, typeSize)
	default:
		out := make([]byte, len(block))
		copy(out, block)
		return out
	}
}

// applyInverseFilter reverses applyFilterBlock.
func applyInverseFilter(block []byte, typeSize int, mode Shuffle) []byte {
	switch mode {
	case Shuffle1:
		return unshuffleBytes(block, typeSize)
	case BitShuffle:
		return bitUnshuffle(block, typeSize)
	default:
		return block
	}
}

// frameLayout resolves the parts of a parsed header/extended-header pair
// that the decompression paths need: the effective filter and codec, and
// whether blocks are split into per-stream payloads.
func frameLayout(h *Header, ext *ExtendedHeader) (filter Shuffle, codec Codec, split bool, err error) {
	filter = h.ShuffleMode()
	codec = h.CodecID()
	split = h.IsSplit()
	if ext != nil {
		filter, err = ext.resolvedFilter()
		if err != nil {
			return 0, 0, false, err
		}
		codec = Codec(ext.Codec)
	}
	return filter, codec, split, nil
}

// decompressBuffer reverses compressBuffer: parse the header, then either
// copy the MEMCPYED body directly or walk the offset table decoding each
// block's filter-inverted codec streams into its place.
func decompressBuffer(data []byte, typeSizeOverride int) ([]byte, error) {
	h, ext, err := parseFrameHeader(data)
	if err != nil {
		return nil, err
	}
	if int(h.NBytesComp) > len(data) {
		return nil, ErrInvalidData
	}

	typeSize := int(h.TypeSize)
	if typeSizeOverride > 0 {
		typeSize = typeSizeOverride
	}
	if typeSize < 1 {
		typeSize = 1
	}

	out := make([]byte, h.NBytesOrig)

	if h.IsMemcpy() {
		if int(h.NBytesComp) < h.headerSize() {
			return nil, ErrMalformedInput
		}
		body := data[h.headerSize():h.NBytesComp]
		if len(body) != len(out) {
			return nil, ErrSizeMismatch
		}
		copy(out, body)
		return out, nil
	}

	filter, codecID, split, err := frameLayout(h, ext)
	if err != nil {
		return nil, err
	}
	compressor, ok := GetCodec(codecID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCodec, codecID)
	}

	n := int(h.NBytesOrig)
	blockSize := int(h.BlockSize)
	if blockSize <= 0 {
		return nil, ErrMalformedInput
	}
	nb := numBlocks(n, blockSize)

	headerLen := h.headerSize()
	offTableLen := offsetTableSize(n, blockSize)
	if headerLen+offTableLen > len(data) {
		return nil, ErrMalformedInput
	}
	offsets, err := readOffsetTable(data[headerLen:], nb)
	if err != nil {
		return nil, err
	}

	for i := 0; i < nb; i++ {
		start := i * blockSize
		end := start + blockSize
		if end > n {
			end = n
		}
		blockLen := end - start

		plain, err := decodeBlock(data, offsets[i], blockLen, typeSize, split, filter, compressor)
		if err != nil {
			return nil, err
		}
		copy(out[start:end], plain)
	}

	return out, nil
}

// decodeBlock decodes the block described by one offset-table entry into
// its plain bytes. off is the byte offset of the block's first
// stream-length prefix, counted from the start of the frame, so it
// indexes directly into the full frame rather than into some body
// sub-slice.
func decodeBlock(frame []byte, off uint32, blockLen, typeSize int, split bool, filter Shuffle, compressor CodecInterface) ([]byte, error) {
	offset := int(off)
	if offset < 0 || offset > len(frame) {
		return nil, ErrMalformedInput
	}
	if err := checkBitshuffleAlignment(blockLen, typeSize, filter); err != nil {
		return nil, err
	}

	filtered, err := decodeBlockStreams(frame[offset:], blockLen, typeSize, split, compressor)
	if err != nil {
		return nil, err
	}
	return applyInverseFilter(filtered, typeSize, filter), nil
}

// decodeBlockStreams reassembles one block's filtered bytes from its codec
// stream(s): a single stream when split is false, or one stream per byte
// position (plus a trailing remainder stream) when split is true.
func decodeBlockStreams(data []byte, blockLen, typeSize int, split bool, compressor CodecInterface) ([]byte, error) {
	if !split {
		payload, _, err := readStream(data, 0)
		if err != nil {
			return nil, err
		}
		plain, err := compressor.Decompress(payload, blockLen)
		if err != nil {
			return nil, err
		}
		if len(plain) != blockLen {
			return nil, ErrMalformedInput
		}
		return plain, nil
	}

	numElements := blockLen / typeSize
	remainder := blockLen % typeSize
	filtered := make([]byte, blockLen)
	offset := 0

	for g := 0; g < typeSize; g++ {
		payload, next, err := readStream(data, offset)
		if err != nil {
			return nil, err
		}
		stream, err := compressor.Decompress(payload, numElements)
		if err != nil {
			return nil, err
		}
		if len(stream) != numElements {
			return nil, ErrMalformedInput
		}
		copy(filtered[g*numElements:(g+1)*numElements], stream)
		offset = next
	}

	if remainder > 0 {
		payload, _, err := readStream(data, offset)
		if err != nil {
			return nil, err
		}
		tail, err := compressor.Decompress(payload, remainder)
		if err != nil {
			return nil, err
		}
		if len(tail) != remainder {
			return nil, ErrMalformedInput
		}
		copy(filtered[numElements*typeSize:], tail)
	}

	return filtered, nil
}

// getItemRange decompresses only the blocks covering byte range
// [byteStart, byteEnd) of the original buffer; callers slicing a handful
// of elements out of a large typed array should not pay for
// decompressing the whole thing.
func getItemRange(data []byte, byteStart, byteEnd int) ([]byte, error) {
	h, ext, err := parseFrameHeader(data)
	if err != nil {
		return nil, err
	}
	n := int(h.NBytesOrig)
	if byteStart < 0 || byteEnd < byteStart || byteEnd > n {
		return nil, ErrInvalidArgument
	}

	out := make([]byte, byteEnd-byteStart)
	if byteStart == byteEnd {
		return out, nil
	}

	if h.IsMemcpy() {
		body := data[h.headerSize():h.NBytesComp]
		if byteEnd > len(body) {
			return nil, ErrSizeMismatch
		}
		copy(out, body[byteStart:byteEnd])
		return out, nil
	}

	typeSize := int(h.TypeSize)
	if typeSize < 1 {
		typeSize = 1
	}
	filter, codecID, split, err := frameLayout(h, ext)
	if err != nil {
		return nil, err
	}
	compressor, ok := GetCodec(codecID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCodec, codecID)
	}

	blockSize := int(h.BlockSize)
	if blockSize <= 0 {
		return nil, ErrMalformedInput
	}
	nb := numBlocks(n, blockSize)
	headerLen := h.headerSize()
	offTableLen := offsetTableSize(n, blockSize)
	if headerLen+offTableLen > len(data) {
		return nil, ErrMalformedInput
	}
	offsets, err := readOffsetTable(data[headerLen:], nb)
	if err != nil {
		return nil, err
	}

	firstBlock := byteStart / blockSize
	lastBlock := (byteEnd - 1) / blockSize

	for i := firstBlock; i <= lastBlock; i++ {
		blkStart := i * blockSize
		blkEnd := blkStart + blockSize
		if blkEnd > n {
			blkEnd = n
		}
		blockLen := blkEnd - blkStart

		plain, err := decodeBlock(data, offsets[i], blockLen, typeSize, split, filter, compressor)
		if err != nil {
			return nil, err
		}

		lo, hi := blkStart, blkEnd
		if lo < byteStart {
			lo = byteStart
		}
		if hi > byteEnd {
			hi = byteEnd
		}
		copy(out[lo-byteStart:hi-byteStart], plain[lo-blkStart:hi-blkStart])
	}

	return out, nil
}
