package gleval

import (
	"errors"
	"sync"

	"github.com/soypat/geometry/ms3"
)

// VecPool hands out scratch buffers to evaluators so that repeated SDF
// evaluations do not allocate. The zero value is ready to use.
type VecPool struct {
	Float bufPool[float32]
	V3    bufPool[ms3.Vec]
}

// GetVecPool extracts a [VecPool] from userData. userData may be a *VecPool
// or implement `VecPool() *VecPool`.
func GetVecPool(userData any) (*VecPool, error) {
	switch ud := userData.(type) {
	case *VecPool:
		if ud != nil {
			return ud, nil
		}
	case interface{ VecPool() *VecPool }:
		if vp := ud.VecPool(); vp != nil {
			return vp, nil
		}
	}
	return nil, errors.New("userData does not contain a VecPool")
}

type bufPool[T any] struct {
	mu   sync.Mutex
	free [][]T
}

// Acquire returns a zeroed buffer of length n.
func (bp *bufPool[T]) Acquire(n int) []T {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for i, buf := range bp.free {
		if cap(buf) >= n {
			last := len(bp.free) - 1
			bp.free[i] = bp.free[last]
			bp.free = bp.free[:last]
			buf = buf[:n]
			clear(buf)
			return buf
		}
	}
	return make([]T, n)
}

// Release returns buf to the pool for reuse.
func (bp *bufPool[T]) Release(buf []T) {
	if cap(buf) == 0 {
		return
	}
	bp.mu.Lock()
	bp.free = append(bp.free, buf[:0])
	bp.mu.Unlock()
}
