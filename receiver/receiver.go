// Package receiver implements the client side of chunk transfer: it
// reads from the joined multicast transfer group, tracks which chunks are still
// missing, reassembles each chunk's fragments, verifies its hash, and
// forwards completed chunks on for writing to disk. It periodically
// NACKs the remaining missing set to the server's request socket.
package receiver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/vitalvas/imgcast/chunkasm"
	"github.com/vitalvas/imgcast/netutil"
	"github.com/vitalvas/imgcast/reqqueue"
	"github.com/vitalvas/imgcast/wire"
)

// maxAssemblers bounds how many chunks may be under reassembly at
// once. When a new chunk's first fragment arrives and the map is
// already at capacity, the oldest chunk still in progress is evicted
// (FIFO by first-fragment arrival, not by smallest id): bounding
// memory against a server that's far ahead of what this client still
// needs. Which chunk gets evicted is arbitrary either way, since the
// server retransmits whatever ends up missing.
const maxAssemblers = 40

// nackInterval is how often the remaining missing set is resent to
// the server's request socket.
const nackInterval = 100 * time.Millisecond

// Chunk is a fully reassembled, hash-verified chunk ready to be
// written to disk at Offset.
type Chunk struct {
	Offset uint64
	Data   []byte
}

// Run reads fragments from transferConn (a socket the caller has
// already joined to the multicast transfer group), sends NACKs for
// missing chunks over reqConn, and pushes completed chunks onto
// out until every chunk in meta has been received or ctx is
// cancelled.
func Run(ctx context.Context, logger *slog.Logger, transferConn net.PacketConn, reqConn net.Conn, meta wire.ImageMetadata, out chan<- Chunk) error {
	missing := reqqueue.New()
	for i := range meta.Chunks {
		missing.Add(uint32(i))
	}

	assemblers := make(map[uint32]*chunkasm.Assembler)
	var order []uint32 // insertion order, oldest first, for eviction

	buf := make([]byte, netutil.TypicalMTUBudget)

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			transferConn.Close()
		case <-done:
		}
	}()
	defer close(done)

	nextNACK := time.Now().Add(nackInterval)

	for !missing.Empty() {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !time.Now().Before(nextNACK) {
			if err := sendChunkRequest(reqConn, missing); err != nil {
				return err
			}
			nextNACK = time.Now().Add(nackInterval)
		}

		if err := transferConn.SetReadDeadline(nextNACK); err != nil {
			return fmt.Errorf("receiver: set read deadline: %w", err)
		}

		n, _, err := transferConn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}

			return fmt.Errorf("receiver: read: %w", err)
		}

		frag, err := wire.DecodeChunkData(buf[:n])
		if err != nil {
			if errors.Is(err, wire.ErrUnexpectedEnd) {
				buf = make([]byte, 2*len(buf))
			}
			continue
		}

		if int(frag.Chunk) >= len(meta.Chunks) {
			continue
		}
		chunkMeta := meta.Chunks[frag.Chunk]

		asm, ok := assemblers[frag.Chunk]
		if !ok {
			for len(order) >= maxAssemblers {
				evict := order[0]
				order = order[1:]
				delete(assemblers, evict)
			}
			asm = chunkasm.New(int(chunkMeta.Size))
			assemblers[frag.Chunk] = asm
			order = append(order, frag.Chunk)
		}

		if err := asm.Add(int(frag.Offset), frag.Data); err != nil {
			continue
		}

		if !asm.IsComplete() {
			continue
		}

		data := asm.IntoBytes()
		delete(assemblers, frag.Chunk)

		if xxhash.Sum64(data) != chunkMeta.Hash {
			logger.Warn("corrupted chunk, discarding", slog.Uint64("chunk_id", uint64(frag.Chunk)))
			continue
		}

		select {
		case out <- Chunk{Offset: chunkMeta.Offset, Data: data}:
		case <-ctx.Done():
			return ctx.Err()
		}

		missing.Remove(frag.Chunk)
	}

	return nil
}

func sendChunkRequest(reqConn net.Conn, missing *reqqueue.Set) error {
	ids := missing.Take(wire.MaxChunkRequestIDs)
	payload := wire.EncodeChunkRequest(wire.ChunkRequest{IDs: ids})
	if _, err := reqConn.Write(payload); err != nil {
		return fmt.Errorf("receiver: send chunk request: %w", err)
	}
	return nil
}
