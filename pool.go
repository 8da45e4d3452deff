package blosc

import "sync"

// int32SlicePool reuses BloscLZ hash tables across blocks. A frame with many
// small blocks otherwise allocates and zero-fills one hash table per block;
// pooling avoids that churn the same way arloliu-mebo's slice pools avoid it
// for columnar conversion buffers.
var int32SlicePool = sync.Pool{
	New: func() any { return &[]int32{} },
}

// getInt32Slice retrieves an int32 slice of exactly size from the pool. The
// caller must call the returned cleanup function (typically via defer) to
// return the backing array to the pool.
func getInt32Slice(size int) ([]int32, func()) {
	ptr, _ := int32SlicePool.Get().(*[]int32)
	slice := (*ptr)[:0]

	if cap(slice) < size {
		slice = make([]int32, size)
	} else {
		slice = slice[:size]
	}
	*ptr = slice

	return slice, func() { int32SlicePool.Put(ptr) }
}
