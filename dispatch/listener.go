package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"github.com/vitalvas/imgcast/wire"
)

const initialRequestBufferSize = 128

// ListenRequests reads ChunkRequest datagrams from conn and forwards
// each requested chunk id onto ids until ctx is cancelled. Ids outside
// [0, numChunks) are logged and dropped rather than forwarded, the
// dispatcher has no chunk to serve for them.
func ListenRequests(ctx context.Context, logger *slog.Logger, conn net.PacketConn, numChunks int, ids chan<- uint32) error {
	buf := make([]byte, initialRequestBufferSize)

	logger.Info("listening for chunk requests")

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer close(done)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		req, err := wire.DecodeChunkRequest(buf[:n])
		if err != nil {
			if errors.Is(err, wire.ErrUnexpectedEnd) {
				buf = make([]byte, 2*len(buf))
			}
			continue
		}

		for _, id := range req.IDs {
			if int(id) >= numChunks {
				logger.Warn("received request for invalid chunk id", slog.Uint64("chunk_id", uint64(id)))
				continue
			}

			select {
			case ids <- id:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
