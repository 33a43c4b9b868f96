package buffer

// pool is a bounded stack of retired, empty blocks.
//
// Blocks in the pool always have start == end == 0 and next == nil.
type pool struct {
	blocks   []*block
	capacity int
}

func newPool(capacity int) *pool {
	return &pool{
		blocks:   make([]*block, 0, capacity),
		capacity: capacity,
	}
}

// push stores b for reuse. It reports false when the pool is full, in
// which case the caller must release b.
func (p *pool) push(b *block) bool {
	if len(p.blocks) >= p.capacity {
		return false
	}
	b.reset()
	p.blocks = append(p.blocks, b)
	return true
}

// pop removes and returns the most recently pooled block.
func (p *pool) pop() (*block, bool) {
	n := len(p.blocks)
	if n == 0 {
		return nil, false
	}
	b := p.blocks[n-1]
	p.blocks[n-1] = nil
	p.blocks = p.blocks[:n-1]
	return b, true
}

// resize changes the capacity, keeping min(len, n) pooled blocks and
// returning how many were released.
func (p *pool) resize(n int) int {
	keep := min(len(p.blocks), n)
	released := 0
	for i := keep; i < len(p.blocks); i++ {
		p.blocks[i].release()
		p.blocks[i] = nil
		released++
	}
	blocks := make([]*block, keep, n)
	copy(blocks, p.blocks[:keep])
	p.blocks = blocks
	p.capacity = n
	return released
}

// clear releases every pooled block and returns how many there were.
func (p *pool) clear() int {
	n := len(p.blocks)
	for i, b := range p.blocks {
		b.release()
		p.blocks[i] = nil
	}
	p.blocks = p.blocks[:0]
	return n
}

func (p *pool) len() int {
	return len(p.blocks)
}
