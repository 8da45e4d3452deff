package blosc

// The block planner chooses the per-buffer block size, decides whether a
// shuffled block should be split into one stream per byte position, and
// decides whether compression should be abandoned in favor of a raw
// memcpy frame. All three decisions are made once per buffer and recorded
// in the frame header; no state is carried across buffers.

const (
	// referenceBlockSize is the L1-reference block size blocksize
	// selection scales from.
	referenceBlockSize = 32 * 1024

	// maxShuffleBlockSize hard-caps the shuffle+split blocksize table.
	maxShuffleBlockSize = 4 * 1024 * 1024

	// minSplitStreamLen is the minimum bytes-per-stream (B/T) required for
	// the split-streams rule to fire.
	minSplitStreamLen = 32

	// maxSplitTypeSize is the largest typesize eligible for split streams.
	maxSplitTypeSize = 16
)

// blockSizeScale maps compression level 0..9 to a multiple of
// referenceBlockSize: half the reference at level 0, the reference itself
// at level 1, increasing to an 8x ceiling at level 9.
var blockSizeScale = [10]float64{0.5, 1, 1, 2, 2, 4, 4, 8, 8, 8}

// shuffleTypesizeScale maps compression level 0..9 to a per-typesize block
// size used when byte-shuffle and split are both active: 32 KiB*T at the
// lowest levels, growing to 512 KiB*T at the highest levels, before the
// absolute maxShuffleBlockSize cap is applied.
var shuffleTypesizeScale = [10]int{
	32 * 1024, 32 * 1024, 64 * 1024, 64 * 1024, 128 * 1024,
	128 * 1024, 256 * 1024, 256 * 1024, 512 * 1024, 512 * 1024,
}

// isHighRatioCodec reports whether a codec is classified as
// high-compression-ratio for blocksize scaling (it receives 2x the base
// size to amortize setup cost).
func isHighRatioCodec(c Codec) bool {
	switch c {
	case ZSTD, ZLIB, LZ4HC:
		return true
	default:
		return false
	}
}

// codecSupportsSplit reports whether a codec is eligible for the
// split-streams rule at the given level.
func codecSupportsSplit(c Codec, level int) bool {
	switch c {
	case BloscLZ, LZ4:
		return true
	case ZSTD:
		return level <= 5
	default:
		return false
	}
}

func clampLevel(level int) int {
	if level < 0 {
		return 0
	}
	if level > 9 {
		return 9
	}
	return level
}

// Plan is the block planner's output for one buffer.
type Plan struct {
	BlockSize int
	Split     bool
}

// PlannerConfig holds the inputs to the block planner.
type PlannerConfig struct {
	Level      int
	TypeSize   int
	BufferSize int
	Codec      Codec
	Filter     Shuffle
}

// planBlock runs the block planner: blocksize selection followed by the
// split-streams rule.
func planBlock(cfg PlannerConfig) Plan {
	level := clampLevel(cfg.Level)
	typeSize := cfg.TypeSize
	if typeSize < 1 {
		typeSize = 1
	}

	splitCandidate := cfg.Filter == Shuffle1 &&
		codecSupportsSplit(cfg.Codec, level) &&
		typeSize <= maxSplitTypeSize

	var blockSize int
	if splitCandidate {
		blockSize = shuffleTypesizeScale[level] * typeSize
		if blockSize > maxShuffleBlockSize {
			blockSize = maxShuffleBlockSize
		}
	} else {
		blockSize = int(float64(referenceBlockSize) * blockSizeScale[level])
		if isHighRatioCodec(cfg.Codec) {
			blockSize *= 2
		}
	}

	if blockSize < typeSize {
		blockSize = typeSize
	}
	if cfg.BufferSize > 0 && blockSize > cfg.BufferSize {
		blockSize = cfg.BufferSize
	}
	if blockSize < 1 {
		blockSize = 1
	}

	split := splitCandidate && blockSize/typeSize >= minSplitStreamLen

	return Plan{BlockSize: blockSize, Split: split}
}

// forceMemcpy reports whether compression level 0 forces the whole-buffer
// memcpy fallback regardless of how well any block would compress.
func forceMemcpy(level int) bool {
	return level == 0
}
