// Package blosc provides a pure Go implementation of the Blosc2 block
// compression container format.
//
// Blosc is a high-performance compressor optimized for binary data, commonly
// used in scientific computing and VFX applications. A buffer is split into
// blocks, each optionally shuffled or bitshuffled and optionally split into
// one stream per byte position, then handed to an inner codec (BloscLZ,
// LZ4, LZ4HC, ZLIB, ZSTD, or Snappy).
//
// # Basic Usage
//
//	// Compress data
//	compressed, err := blosc.Compress(data, blosc.LZ4, 5, blosc.Shuffle1, 4)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Decompress data
//	decompressed, err := blosc.Decompress(compressed)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Shuffle Modes
//
// Blosc supports three shuffle modes that rearrange bytes before compression:
//
//   - NoShuffle: No preprocessing, data compressed as-is
//   - Shuffle1: Byte shuffle - groups bytes by position within elements
//   - BitShuffle: Bit-level shuffle for maximum compression of typed data
//
// # Supported Codecs
//
//   - BloscLZ: in-tree FastLZ-derived codec, fast at every level
//   - LZ4 / LZ4HC: very fast compression/decompression
//   - ZSTD: high compression ratio with good speed
//   - ZLIB: standard deflate compression
//   - Snappy: Google's fast compression codec
//
// # Thread Safety
//
// All functions in this package are safe for concurrent use, except
// RegisterCodec, which writes the shared codec registry without locking.
package blosc

import (
	"errors"
	"fmt"
)

// Version constants
const (
	Version       = "2.0.0"
	FormatVersion = 2 // Blosc format version
)

// Codec identifies the compression algorithm
type Codec uint8

const (
	BloscLZ Codec = iota // BloscLZ, in-tree FastLZ-derived codec
	LZ4                  // LZ4 compression
	LZ4HC                // LZ4 High Compression
	Snappy               // Snappy compression
	ZLIB                 // ZLIB/deflate compression
	ZSTD                 // Zstandard compression
)

// String returns the codec name
func (c Codec) String() string {
	switch c {
	case BloscLZ:
		return "blosclz"
	case LZ4:
		return "lz4"
	case LZ4HC:
		return "lz4hc"
	case Snappy:
		return "snappy"
	case ZLIB:
		return "zlib"
	case ZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// Shuffle mode for byte/bit reordering
type Shuffle uint8

const (
	NoShuffle  Shuffle = 0x0 // No shuffle
	Shuffle1   Shuffle = 0x1 // Byte shuffle
	BitShuffle Shuffle = 0x2 // Bit shuffle
)

// String returns the shuffle mode name
func (s Shuffle) String() string {
	switch s {
	case NoShuffle:
		return "noshuffle"
	case Shuffle1:
		return "shuffle"
	case BitShuffle:
		return "bitshuffle"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Header represents the fixed 16-byte Blosc frame header that prefixes all
// compressed data; a v2 extended frame appends 16 more bytes parsed into an
// *ExtendedHeader. See header.go for parsing, serialization, and the
// offset-table/stream-framing helpers that sit alongside it.
type Header struct {
	Version    uint8  // Blosc format version (2 for current format)
	VersionLZ  uint8  // Wire-format generation of the inner codec
	Flags      uint8  // Shuffle, memcpy, and split-streams flags
	TypeSize   uint8  // Element size for shuffle (1, 2, 4, 8, etc.)
	NBytesOrig uint32 // Original (uncompressed) data size
	BlockSize  uint32 // Block size used for compression
	NBytesComp uint32 // Total compressed size (including this header)
}

// Predefined errors for common failure conditions.
// These can be checked using errors.Is() for programmatic error handling.
var (
	// ErrInvalidData indicates the compressed data is malformed or corrupted.
	ErrInvalidData = errors.New("blosc: invalid compressed data")

	// ErrInvalidHeader indicates the Blosc header is missing or malformed.
	ErrInvalidHeader = errors.New("blosc: invalid header")

	// ErrInvalidVersion indicates an unsupported Blosc format version.
	ErrInvalidVersion = errors.New("blosc: unsupported format version")

	// ErrInvalidCodec indicates the codec specified is not supported or registered.
	ErrInvalidCodec = errors.New("blosc: unsupported codec")

	// ErrSizeMismatch indicates the decompressed size does not match the expected size.
	ErrSizeMismatch = errors.New("blosc: decompressed size mismatch")

	// ErrDataTooLarge indicates the input data exceeds the maximum supported size.
	ErrDataTooLarge = errors.New("blosc: data too large")

	// ErrCompressionFailed indicates the compression operation failed.
	ErrCompressionFailed = errors.New("blosc: compression failed")

	// ErrDecompressionFailed indicates the decompression operation failed.
	ErrDecompressionFailed = errors.New("blosc: decompression failed")

	// ErrInvalidArgument indicates a caller-supplied argument (an item
	// range, a buffer offset) is out of bounds or otherwise nonsensical.
	ErrInvalidArgument = errors.New("blosc: invalid argument")

	// ErrOutputTooSmall indicates a caller-supplied output buffer cannot
	// hold the decompressed result.
	ErrOutputTooSmall = errors.New("blosc: output buffer too small")

	// ErrMalformedInput indicates a compressed stream failed a structural
	// check — a truncated stream, an out-of-range offset, an inner codec
	// token that reads past the block — distinct from ErrInvalidHeader,
	// which is reserved for the fixed header fields themselves.
	ErrMalformedInput = errors.New("blosc: malformed compressed input")

	// ErrBitshuffleAlignment indicates bitshuffle was requested over a
	// byte range whose element count is not a multiple of 8.
	ErrBitshuffleAlignment = errors.New("blosc: bitshuffle requires a multiple of 8 elements")

	// errIncompressible is an internal, unexported signal: an inner codec
	// declined to compress a stream (or did not shrink it). The pipeline
	// driver turns this into a whole-buffer memcpy fallback; it must
	// never escape to a caller.
	errIncompressible = errors.New("blosc: block is incompressible")
)

// Options configures Blosc compression behavior.
type Options struct {
	Codec      Codec   // Compression codec
	Level      int     // Compression level (0-9, higher = better compression)
	Shuffle    Shuffle // Shuffle mode (NoShuffle, Shuffle1, BitShuffle)
	TypeSize   int     // Element size in bytes for shuffle (1, 2, 4, 8, ...)
	BlockSize  int     // Block size in bytes (0 = automatic, via the planner)
	NumThreads int     // Reserved for future use (not used in this single-threaded implementation)
}

// DefaultOptions returns default compression options
func DefaultOptions() Options {
	return Options{
		Codec:    BloscLZ,
		Level:    5,
		Shuffle:  Shuffle1,
		TypeSize: 4,
	}
}

// Compress compresses data using Blosc format
//
// Parameters:
//   - data: Input data to compress
//   - codec: Compression codec
//   - level: Compression level (0-9)
//   - shuffle: Shuffle mode (NoShuffle, Shuffle1, BitShuffle)
//   - typeSize: Element size for shuffle preprocessing (1, 2, 4, 8 bytes)
//
// Returns compressed data with Blosc header, or error
func Compress(data []byte, codec Codec, level int, shuffle Shuffle, typeSize int) ([]byte, error) {
	opts := Options{
		Codec:    codec,
		Level:    level,
		Shuffle:  shuffle,
		TypeSize: typeSize,
	}
	return CompressWithOptions(data, opts)
}

// CompressWithOptions compresses data using specified options.
func CompressWithOptions(data []byte, opts Options) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrInvalidData
	}
	if opts.TypeSize <= 0 {
		opts.TypeSize = 1
	}
	if opts.TypeSize > 255 {
		// The header records the type size in a single byte.
		return nil, ErrInvalidArgument
	}
	opts.Level = clampLevel(opts.Level)

	return compressBuffer(data, opts)
}

// Decompress decompresses Blosc-compressed data, using the type size
// recorded in the header.
func Decompress(data []byte) ([]byte, error) {
	return DecompressWithSize(data, 0)
}

// DecompressWithSize decompresses with explicit type size override. A
// typeSize of 0 uses the type size recorded in the header.
func DecompressWithSize(data []byte, typeSize int) ([]byte, error) {
	if len(data) < HeaderSizeV1 {
		return nil, ErrInvalidHeader
	}
	return decompressBuffer(data, typeSize)
}

// GetInfo returns information about compressed data without decompressing
func GetInfo(data []byte) (*Header, error) {
	return ParseHeader(data)
}

// GetDecompressedSize returns the original size of compressed data
func GetDecompressedSize(data []byte) (int, error) {
	header, err := ParseHeader(data)
	if err != nil {
		return 0, err
	}
	return int(header.NBytesOrig), nil
}

// BufferSizes reports the original, compressed, and block sizes recorded in
// a frame's header, without decompressing its body.
func BufferSizes(data []byte) (nbytesOrig, nbytesComp, blockSize int, err error) {
	h, err := ParseHeader(data)
	if err != nil {
		return 0, 0, 0, err
	}
	return int(h.NBytesOrig), int(h.NBytesComp), int(h.BlockSize), nil
}

// BufferMetainfo reports the codec, filter, and type size a frame was
// compressed with.
func BufferMetainfo(data []byte) (codec Codec, filter Shuffle, typeSize int, err error) {
	h, ext, err := parseFrameHeader(data)
	if err != nil {
		return 0, 0, 0, err
	}
	filter, codec, _, err = frameLayout(h, ext)
	if err != nil {
		return 0, 0, 0, err
	}
	return codec, filter, int(h.TypeSize), nil
}

// BufferValidate reports whether data parses as a structurally valid Blosc
// frame — header, extended header, filter pipeline, codec, and offset
// table all in bounds — without decompressing the body or inner streams.
func BufferValidate(data []byte) error {
	h, ext, err := parseFrameHeader(data)
	if err != nil {
		return err
	}
	if int(h.NBytesComp) > len(data) {
		return ErrMalformedInput
	}

	_, codec, _, err := frameLayout(h, ext)
	if err != nil {
		return err
	}
	if _, ok := GetCodec(codec); !ok {
		return fmt.Errorf("%w: %s", ErrInvalidCodec, codec)
	}

	if h.IsMemcpy() {
		return nil
	}

	blockSize := int(h.BlockSize)
	if blockSize <= 0 {
		return ErrMalformedInput
	}
	if h.headerSize()+offsetTableSize(int(h.NBytesOrig), blockSize) > len(data) {
		return ErrMalformedInput
	}
	return nil
}

// CompressInto compresses data into a caller-supplied dst, returning the
// number of bytes written. It returns ErrOutputTooSmall when dst cannot
// hold the compressed frame.
func CompressInto(dst, data []byte, codec Codec, level int, shuffle Shuffle, typeSize int) (int, error) {
	compressed, err := Compress(data, codec, level, shuffle, typeSize)
	if err != nil {
		return 0, err
	}
	if len(dst) < len(compressed) {
		return 0, ErrOutputTooSmall
	}
	return copy(dst, compressed), nil
}

// DecompressInto decompresses data into a caller-supplied dst, returning
// the number of bytes written. It returns ErrOutputTooSmall when dst is
// smaller than the frame's recorded original size, checked before the
// frame is decompressed.
func DecompressInto(dst, data []byte) (int, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return 0, err
	}
	if len(dst) < int(h.NBytesOrig) {
		return 0, ErrOutputTooSmall
	}
	decompressed, err := Decompress(data)
	if err != nil {
		return 0, err
	}
	return copy(dst, decompressed), nil
}

// GetItemInto decompresses the elements in [start, start+count) into a
// caller-supplied dst, returning the number of bytes written.
func GetItemInto(dst, data []byte, start, count int) (int, error) {
	if start < 0 || count < 0 {
		return 0, ErrInvalidArgument
	}
	h, err := ParseHeader(data)
	if err != nil {
		return 0, err
	}
	typeSize := int(h.TypeSize)
	if typeSize < 1 {
		typeSize = 1
	}
	if len(dst) < count*typeSize {
		return 0, ErrOutputTooSmall
	}
	item, err := GetItem(data, start, count)
	if err != nil {
		return 0, err
	}
	return copy(dst, item), nil
}

// GetItem decompresses only the elements in [start, start+count) of typeSize
// bytes each, without decompressing blocks that fall entirely outside that
// range — useful for pulling a handful of elements out of a large frame.
func GetItem(data []byte, start, count int) ([]byte, error) {
	if start < 0 || count < 0 {
		return nil, ErrInvalidArgument
	}
	h, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	typeSize := int(h.TypeSize)
	if typeSize < 1 {
		typeSize = 1
	}
	byteStart := start * typeSize
	byteEnd := byteStart + count*typeSize
	return getItemRange(data, byteStart, byteEnd)
}
