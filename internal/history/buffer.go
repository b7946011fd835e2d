// Package history implements the append-only L1 (best bid/ask) history the
// broker records after every successful order. Rows are batched in a small
// pending slice before being compacted into the queryable form — a
// buffered-flush policy the spec explicitly allows (spec §4.4) in place of
// mutating a columnar table row by row.
package history

// Row is one L1 history entry: the best bid/ask immediately after a
// successful order (limit or market), and the tick of that order.
type Row struct {
	BestBid *int64
	BestAsk *int64
	Tick    int64
}

// flushThreshold caps how many rows accumulate in the pending buffer before
// being folded into the committed slice.
const flushThreshold = 1000

// Buffer is a per-asset append-only sequence of Rows.
type Buffer struct {
	committed []Row
	pending   []Row
}

// NewBuffer builds an empty history buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Append records a new row, flushing the pending batch once it reaches the
// threshold.
func (b *Buffer) Append(bestBid, bestAsk *int64, tick int64) {
	b.pending = append(b.pending, Row{BestBid: bestBid, BestAsk: bestAsk, Tick: tick})
	if len(b.pending) >= flushThreshold {
		b.flush()
	}
}

func (b *Buffer) flush() {
	if len(b.pending) == 0 {
		return
	}
	b.committed = append(b.committed, b.pending...)
	b.pending = b.pending[:0]
}

// Rows flushes any pending buffer and returns every row in tick order.
func (b *Buffer) Rows() []Row {
	b.flush()
	out := make([]Row, len(b.committed))
	copy(out, b.committed)
	return out
}

// Len reports the number of rows recorded so far (P7: equals the number of
// successful place_order calls on this asset).
func (b *Buffer) Len() int {
	return len(b.committed) + len(b.pending)
}
