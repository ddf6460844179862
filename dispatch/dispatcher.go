// Package dispatch implements the server side of chunk transfer: the
// request listener that turns client NACKs into a pending-chunk
// queue, and the dispatcher that serves that queue over multicast at
// a paced rate.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net"
	"os"
	"time"

	"github.com/vitalvas/imgcast/reqqueue"
	"github.com/vitalvas/imgcast/wire"
)

// MaxFragmentSize returns the largest fragment payload size whose
// encoded ChunkData still fits within maxUDPPayloadSize, found by
// binary search over the worst-case (largest field values) encoding.
func MaxFragmentSize(maxUDPPayloadSize int) int {
	l, r := 0, math.MaxUint16

	test := make([]byte, math.MaxUint16)

	for r-l > 1 {
		m := (r-l)/2 + l

		encoded := wire.EncodeChunkData(wire.ChunkData{
			Chunk:  math.MaxUint32,
			Offset: math.MaxUint32,
			Data:   test[:m],
		})

		if len(encoded) <= maxUDPPayloadSize {
			l = m
		} else {
			r = m
		}
	}

	return l
}

// Dispatcher serves chunks requested by clients over a multicast
// transfer socket, pacing sends to FloodSpeedBps bits per second.
type Dispatcher struct {
	logger        *slog.Logger
	file          string
	chunks        []wire.ChunkMetadata
	fragmentSize  int
	floodSpeedBps uint64
}

// NewDispatcher returns a Dispatcher for the given image file and
// metadata. maxUDPPayloadSize bounds how large an encoded fragment may
// be; floodSpeedBps bounds the sustained multicast send rate.
func NewDispatcher(logger *slog.Logger, file string, meta wire.ImageMetadata, maxUDPPayloadSize int, floodSpeedBps uint64) *Dispatcher {
	return &Dispatcher{
		logger:        logger,
		file:          file,
		chunks:        meta.Chunks,
		fragmentSize:  MaxFragmentSize(maxUDPPayloadSize),
		floodSpeedBps: floodSpeedBps,
	}
}

// Run pulls requested chunk ids off ids, merges them into a
// round-robin queue, and multicasts each chunk's fragments over conn
// to group until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context, conn net.PacketConn, group net.Addr, ids <-chan uint32) error {
	f, err := os.Open(d.file)
	if err != nil {
		return fmt.Errorf("dispatch: open %s: %w", d.file, err)
	}
	defer f.Close()

	queue := reqqueue.New()
	var lastID uint32
	chunkBuf := make([]byte, 0)

	deadline := time.Now()

	for {
		for {
			select {
			case id := <-ids:
				queue.Add(id)
				continue
			default:
			}
			break
		}

		next, ok := queue.Next(lastID)
		if !ok {
			select {
			case id, open := <-ids:
				if !open {
					return nil
				}
				queue.Add(id)
				deadline = time.Now()
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		lastID = next

		chunk := d.chunks[next]
		if cap(chunkBuf) < int(chunk.Size) {
			chunkBuf = make([]byte, chunk.Size)
		}
		chunkBuf = chunkBuf[:chunk.Size]

		if _, err := f.ReadAt(chunkBuf, int64(chunk.Offset)); err != nil {
			return fmt.Errorf("dispatch: read chunk %d: %w", next, err)
		}

		for count := 0; count < len(chunkBuf); {
			fragSize := len(chunkBuf) - count
			if fragSize > d.fragmentSize {
				fragSize = d.fragmentSize
			}

			payload := wire.EncodeChunkData(wire.ChunkData{
				Chunk:  next,
				Offset: uint32(count),
				Data:   chunkBuf[count : count+fragSize],
			})

			if err := sleepUntil(ctx, deadline); err != nil {
				return err
			}

			sent, err := conn.WriteTo(payload, group)
			if err != nil {
				return fmt.Errorf("dispatch: send fragment: %w", err)
			}
			if sent != len(payload) {
				return fmt.Errorf("dispatch: short write sending fragment")
			}

			deadline = deadline.Add(time.Duration(8*uint64(sent)) * time.Second / time.Duration(d.floodSpeedBps))
			count += fragSize
		}
	}
}

func sleepUntil(ctx context.Context, t time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d := time.Until(t)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
