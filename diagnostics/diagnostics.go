// Package diagnostics formats a read-only snapshot of a tlsf pool: the
// physical chain, block states, and allocation/free-block counts. It never
// mutates allocator state, so it cannot violate any core invariant — useful
// for inspecting a pool backed by memory the host cannot otherwise read,
// such as GPU device memory.
package diagnostics

import (
	"fmt"
	"io"

	"github.com/bytedance/gopkg/lang/mcache"

	"github.com/yazaldefilimone/tlsf/tlsf"
)

// scratchCap is the initial scratch buffer size handed to mcache; it grows
// via append like any other []byte if a pool's dump exceeds it.
const scratchCap = 4 * 1024

// Dump writes a human-readable snapshot of a's stats and physical chain to
// w: a summary line (pool size, allocation and free-block counts), followed
// by one line per block (offset, size, state).
func Dump(a *tlsf.Allocator, w io.Writer) error {
	buf := mcache.Malloc(0, scratchCap)
	defer mcache.Free(buf)

	numAllocation, numFreeBlock := a.Stats()
	buf = appendf(buf, "pool: size=%d allocations=%d free_blocks=%d\n",
		a.PoolSize(), numAllocation, numFreeBlock)

	a.Walk(func(b tlsf.BlockInfo) {
		state := "used"
		if b.Free {
			state = "free"
		}
		buf = appendf(buf, "  block offset=%-10d size=%-10d state=%s\n", b.Offset, b.Size, state)
	})

	_, err := w.Write(buf)
	return err
}

func appendf(buf []byte, format string, args ...any) []byte {
	return append(buf, fmt.Sprintf(format, args...)...)
}
