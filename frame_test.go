package blosc

import (
	"bytes"
	cryptorand "crypto/rand"
	"encoding/binary"
	"errors"
	"testing"
)

// TestShuffleTypeSizeOneIsIdentity compresses a 256-byte ramp with byte
// shuffle at typeSize 1: the shuffle pass must not reorder anything and
// the frame must still round-trip.
func TestShuffleTypeSizeOneIsIdentity(t *testing.T) {
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i)
	}

	compressed, err := Compress(data, BloscLZ, 5, Shuffle1, 1)
	if err != nil {
		t.Fatalf("compress failed: %v", err)
	}
	decompressed, err := Decompress(compressed)
	if err != nil {
		t.Fatalf("decompress failed: %v", err)
	}
	if !bytes.Equal(data, decompressed) {
		t.Error("round-trip mismatch")
	}
}

// TestBitshuffleZerosCompressTightly checks that an all-zero buffer
// under bitshuffle collapses to a tiny frame.
func TestBitshuffleZerosCompressTightly(t *testing.T) {
	data := make([]byte, 4096)

	compressed, err := Compress(data, BloscLZ, 5, BitShuffle, 4)
	if err != nil {
		t.Fatalf("compress failed: %v", err)
	}
	if len(compressed) > 256 {
		t.Errorf("all-zero buffer compressed to %d bytes, want <= 256", len(compressed))
	}

	decompressed, err := Decompress(compressed)
	if err != nil {
		t.Fatalf("decompress failed: %v", err)
	}
	if !bytes.Equal(data, decompressed) {
		t.Error("round-trip mismatch")
	}
}

// TestRandomDataCollapsesToMemcpy checks that random input, which BloscLZ
// cannot encode smaller than itself, is stored verbatim: MEMCPYED set and
// cbytes exactly the header plus the raw bytes.
func TestRandomDataCollapsesToMemcpy(t *testing.T) {
	data := make([]byte, 8192)
	_, _ = cryptorand.Read(data)

	compressed, err := Compress(data, BloscLZ, 5, NoShuffle, 1)
	if err != nil {
		t.Fatalf("compress failed: %v", err)
	}

	h, err := ParseHeader(compressed)
	if err != nil {
		t.Fatalf("parse header failed: %v", err)
	}
	if !h.IsMemcpy() {
		t.Error("random data should produce a memcpy frame")
	}
	if int(h.NBytesComp) != HeaderSizeV1+len(data) {
		t.Errorf("cbytes = %d, want %d", h.NBytesComp, HeaderSizeV1+len(data))
	}

	decompressed, err := Decompress(compressed)
	if err != nil {
		t.Fatalf("decompress failed: %v", err)
	}
	if !bytes.Equal(data, decompressed) {
		t.Error("round-trip mismatch")
	}
}

// TestSplitStreamsPerBytePosition compresses 65536 little-endian uint32
// values with byte shuffle: the block must carry exactly one
// length-prefixed stream per byte position, and the byte-0 stream must
// decode to the low byte of every element.
func TestSplitStreamsPerBytePosition(t *testing.T) {
	const count = 65536
	data := make([]byte, count*4)
	for i := 0; i < count; i++ {
		binary.LittleEndian.PutUint32(data[i*4:], uint32(i))
	}

	compressed, err := Compress(data, BloscLZ, 5, Shuffle1, 4)
	if err != nil {
		t.Fatalf("compress failed: %v", err)
	}

	h, err := ParseHeader(compressed)
	if err != nil {
		t.Fatalf("parse header failed: %v", err)
	}
	if h.IsMemcpy() {
		t.Fatal("expected a compressed frame, got memcpy")
	}
	if !h.IsSplit() {
		t.Fatal("expected split streams for shuffle + typeSize 4")
	}
	if int(h.BlockSize) != len(data) {
		t.Fatalf("expected a single block of %d bytes, got block size %d", len(data), h.BlockSize)
	}

	offsets, err := readOffsetTable(compressed[HeaderSizeV1:], 1)
	if err != nil {
		t.Fatalf("read offset table failed: %v", err)
	}

	// Walk the streams: exactly 4, ending at the end of the frame.
	offset := int(offsets[0])
	var streams [][]byte
	for offset < len(compressed) {
		payload, next, err := readStream(compressed, offset)
		if err != nil {
			t.Fatalf("stream %d: %v", len(streams), err)
		}
		streams = append(streams, payload)
		offset = next
	}
	if len(streams) != 4 {
		t.Fatalf("expected exactly 4 streams, got %d", len(streams))
	}

	// The byte-0 stream holds the low byte of every element: a repeating
	// 0..255 ramp.
	codec, _ := GetCodec(BloscLZ)
	stream0, err := codec.Decompress(streams[0], count)
	if err != nil {
		t.Fatalf("decompress stream 0 failed: %v", err)
	}
	for i := 0; i < count; i++ {
		if stream0[i] != byte(i) {
			t.Fatalf("stream 0 byte %d = %d, want %d", i, stream0[i], byte(i))
		}
	}

	decompressed, err := Decompress(compressed)
	if err != nil {
		t.Fatalf("decompress failed: %v", err)
	}
	if !bytes.Equal(data, decompressed) {
		t.Error("round-trip mismatch")
	}
}

// TestBufferEndsMidElement compresses 10 bytes at typeSize 4: the 2-byte
// tail past the last whole element must survive the round trip.
func TestBufferEndsMidElement(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	compressed, err := Compress(data, BloscLZ, 5, Shuffle1, 4)
	if err != nil {
		t.Fatalf("compress failed: %v", err)
	}
	decompressed, err := Decompress(compressed)
	if err != nil {
		t.Fatalf("decompress failed: %v", err)
	}
	if !bytes.Equal(data, decompressed) {
		t.Error("round-trip mismatch")
	}
}

// rewriteAsExtendedFrame converts a plain (v1) compressed frame into an
// extended (v2) frame carrying the given filter pipeline: both shuffle
// flag bits are set as the marker, the 16 extended bytes are inserted
// after the fixed header, and every offset-table entry is shifted past
// them.
func rewriteAsExtendedFrame(t *testing.T, frame []byte, filters [filterPipelineSlots]FilterCode) []byte {
	t.Helper()

	h, err := ParseHeader(frame)
	if err != nil {
		t.Fatalf("parse source frame failed: %v", err)
	}
	if h.IsMemcpy() || h.IsExtended() {
		t.Fatal("source frame must be a plain compressed frame")
	}

	const extra = HeaderSizeV2 - HeaderSizeV1

	nb := numBlocks(int(h.NBytesOrig), int(h.BlockSize))
	offsets, err := readOffsetTable(frame[HeaderSizeV1:], nb)
	if err != nil {
		t.Fatalf("read offset table failed: %v", err)
	}
	for i := range offsets {
		offsets[i] += extra
	}

	ext := &ExtendedHeader{Filters: filters, Codec: uint8(h.CodecID())}

	h2 := *h
	h2.Flags |= flagDoShuffle | flagDoBitShuffle
	h2.NBytesComp += extra

	out := make([]byte, 0, len(frame)+extra)
	out = append(out, h2.Bytes()...)
	out = append(out, ext.Bytes()...)
	offTable := make([]byte, nb*4)
	writeOffsetTable(offTable, offsets)
	out = append(out, offTable...)
	out = append(out, frame[HeaderSizeV1+nb*4:]...)
	return out
}

// TestExtendedHeaderFilterPipeline builds v2 frames by hand and checks
// that the decoder takes the filter from the extended filter array, not
// from the two marker bits.
func TestExtendedHeaderFilterPipeline(t *testing.T) {
	t.Run("bitshuffle in slot 0", func(t *testing.T) {
		data := makeTestData(4096)
		compressed, err := Compress(data, BloscLZ, 5, BitShuffle, 4)
		if err != nil {
			t.Fatalf("compress failed: %v", err)
		}

		var filters [filterPipelineSlots]FilterCode
		filters[0] = FilterBitShuffle
		v2 := rewriteAsExtendedFrame(t, compressed, filters)

		decompressed, err := Decompress(v2)
		if err != nil {
			t.Fatalf("decompress of extended frame failed: %v", err)
		}
		if !bytes.Equal(data, decompressed) {
			t.Error("extended frame did not apply bitshuffle from the filter array")
		}
	})

	t.Run("none in slot 0 is a legal raw pipeline", func(t *testing.T) {
		data := makeTestData(4096)
		compressed, err := Compress(data, BloscLZ, 5, NoShuffle, 1)
		if err != nil {
			t.Fatalf("compress failed: %v", err)
		}

		var filters [filterPipelineSlots]FilterCode
		v2 := rewriteAsExtendedFrame(t, compressed, filters)

		decompressed, err := Decompress(v2)
		if err != nil {
			t.Fatalf("decompress of extended frame failed: %v", err)
		}
		if !bytes.Equal(data, decompressed) {
			t.Error("extended frame with a NONE pipeline should decode as a raw block")
		}
	})

	t.Run("chained filters are rejected", func(t *testing.T) {
		data := makeTestData(4096)
		compressed, err := Compress(data, BloscLZ, 5, NoShuffle, 1)
		if err != nil {
			t.Fatalf("compress failed: %v", err)
		}

		var filters [filterPipelineSlots]FilterCode
		filters[0] = FilterShuffle
		filters[1] = FilterShuffle
		v2 := rewriteAsExtendedFrame(t, compressed, filters)

		if _, err := Decompress(v2); !errors.Is(err, ErrMalformedInput) {
			t.Errorf("expected ErrMalformedInput for a chained filter pipeline, got %v", err)
		}
	})
}

// TestCompressRejectsOversizedTypeSize checks the one-byte limit of the
// header's typesize field.
func TestCompressRejectsOversizedTypeSize(t *testing.T) {
	data := makeTestData(1024)
	if _, err := Compress(data, BloscLZ, 5, NoShuffle, 256); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for typeSize 256, got %v", err)
	}
}
