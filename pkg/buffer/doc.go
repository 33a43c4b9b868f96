// Package buffer provides a growable byte buffer stored as a chain of
// fixed-size blocks.
//
// A Stream never reallocates or copies data it already holds. Writes fill
// the last block and link a new one when it is full; reads drain the first
// block and retire it once empty. Retired blocks are kept in a bounded pool
// and handed out again before anything new is allocated:
//
//   - Stream: the single-goroutine block chain. Write, Read, Peek, Skip,
//     Truncate, Clear, Snapshot, plus io.WriterTo and io.ReaderFrom so
//     io.Copy moves whole blocks.
//
//   - Pipe: a thread-safe blocking front for a Stream, for producers and
//     consumers running in different goroutines. It supports graceful
//     shutdown through CloseWrite() (reads continue until drained) or
//     CloseWithError() (immediate closure).
//
// Length is either cached (O(1)) or recomputed by walking the chain, chosen
// with Options.DisableLengthCaching. Invalid arguments, unsupported
// operations, invalid states and use after Close are reported with the
// sentinel errors ErrInvalidArgument, ErrUnsupported, ErrInvalidState and
// ErrClosed.
//
// Example usage:
//
//	s, err := buffer.New(&buffer.Options{BlockSize: 4096, PoolSize: 8})
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	s.Write(header)
//	s.ReadFrom(body)
//
//	// Send everything and recycle the drained blocks.
//	_, err = s.WriteTo(conn)
package buffer
