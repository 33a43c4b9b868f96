package buffer

var _ BytesBuffer = (*Pipe)(nil)

// BytesBuffer is the blocking, closable byte buffer contract shared with
// the rest of the codebase. It is safe for concurrent use.
type BytesBuffer interface {
	Write(p []byte) (n int, err error)
	Read(p []byte) (n int, err error)
	Discard(n int) (err error)
	Close() error
	CloseWrite() error
	CloseWithError(err error) error
	Error() error
	Reset()
	Bytes() []byte
	Len() int
}

// Bytes16KB creates a Stream with 16KB blocks and a pool of 16 blocks.
func Bytes16KB() *Stream {
	return mustNew(1<<14, 16)
}

// Bytes4KB creates a Stream with 4KB blocks and a pool of 16 blocks.
func Bytes4KB() *Stream {
	return mustNew(1<<12, 16)
}

// Bytes1KB creates a Stream with 1KB blocks and a pool of 16 blocks.
func Bytes1KB() *Stream {
	return mustNew(1<<10, 16)
}

// Bytes creates a Stream with the default block size and no pool.
func Bytes() *Stream {
	return mustNew(DefaultBlockSize, 0)
}

func mustNew(blockSize, poolSize int) *Stream {
	s, err := New(&Options{BlockSize: blockSize, PoolSize: poolSize})
	if err != nil {
		panic(err)
	}
	return s
}
