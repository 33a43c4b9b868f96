package buffer

// block is one fixed-capacity link of a Stream's chain.
//
// Bytes in buf[start:end] are unread. Writes land at buf[end:], reads
// consume from buf[start:]. A block is owned either by the chain or by the
// pool, never both.
type block struct {
	next  *block
	buf   []byte
	start int
	end   int
}

func newBlock(size int) *block {
	return &block{buf: make([]byte, size)}
}

// readable returns the number of unread bytes.
func (b *block) readable() int {
	return b.end - b.start
}

// writable returns the free space after end.
func (b *block) writable() int {
	return len(b.buf) - b.end
}

func (b *block) unread() []byte {
	return b.buf[b.start:b.end]
}

func (b *block) space() []byte {
	return b.buf[b.end:]
}

// write copies as much of p as fits and returns the count.
func (b *block) write(p []byte) int {
	n := copy(b.buf[b.end:], p)
	b.end += n
	return n
}

// consume advances start by at most n and returns the amount consumed.
func (b *block) consume(n int) int {
	if r := b.readable(); n > r {
		n = r
	}
	b.start += n
	return n
}

func (b *block) drained() bool {
	return b.start >= b.end
}

// reset makes the block empty and unlinked.
func (b *block) reset() {
	b.start = 0
	b.end = 0
	b.next = nil
}

// release drops the memory so a stale reference cannot reach it.
func (b *block) release() {
	b.reset()
	b.buf = nil
}
