package buffer

// chain is the linked sequence of blocks backing a Stream, from head
// (oldest, drained first) to tail (written to). It always holds at least
// one block while open.
type chain struct {
	head      *block
	tail      *block
	blockSize int
	pool      *pool
	stats     Stats
}

func newChain(blockSize, poolSize int) *chain {
	c := &chain{
		blockSize: blockSize,
		pool:      newPool(poolSize),
	}
	b := c.obtain()
	c.head = b
	c.tail = b
	return c
}

// obtain returns a pooled block if one is available, otherwise a new one.
func (c *chain) obtain() *block {
	if b, ok := c.pool.pop(); ok {
		c.stats.Reused++
		return b
	}
	c.stats.Allocated++
	return newBlock(c.blockSize)
}

// recycle hands a block that left the chain to the pool, or releases it
// when the pool is full.
func (c *chain) recycle(b *block) {
	if c.pool.push(b) {
		c.stats.Recycled++
		return
	}
	b.release()
	c.stats.Released++
}

// appendTail links a fresh or pooled block after the tail.
func (c *chain) appendTail() *block {
	b := c.obtain()
	c.tail.next = b
	c.tail = b
	return b
}

// retireHead removes the drained head. When the head is also the tail
// the block is reset in place so the chain never becomes empty.
func (c *chain) retireHead() {
	old := c.head
	if old == c.tail {
		old.reset()
		return
	}
	c.head = old.next
	c.recycle(old)
}

// dropAfter retires every block following b and makes b the tail.
func (c *chain) dropAfter(b *block) {
	next := b.next
	b.next = nil
	c.tail = b
	for next != nil {
		following := next.next
		c.recycle(next)
		next = following
	}
}

// reset leaves a single empty block, releasing the others without
// touching the pool.
func (c *chain) reset() {
	next := c.head.next
	c.head.reset()
	c.tail = c.head
	for next != nil {
		following := next.next
		next.release()
		c.stats.Released++
		next = following
	}
}

// length walks the chain and sums the unread bytes.
func (c *chain) length() int {
	n := 0
	for b := c.head; b != nil; b = b.next {
		n += b.readable()
	}
	return n
}

func (c *chain) blocks() int {
	n := 0
	for b := c.head; b != nil; b = b.next {
		n++
	}
	return n
}

// release frees every block of the chain and the pool.
func (c *chain) release() {
	for b := c.head; b != nil; {
		next := b.next
		b.release()
		c.stats.Released++
		b = next
	}
	c.stats.Released += uint64(c.pool.clear())
	c.head = nil
	c.tail = nil
}
