// Package image builds ImageMetadata by chunking a file on disk:
// reading it sequentially in chunk-sized pieces and hashing each
// piece with xxhash.
package image

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/vitalvas/imgcast"
	"github.com/vitalvas/imgcast/wire"
)

// BuildMetadata reads path sequentially in chunkSize pieces and
// returns the wire.ImageMetadata describing it: one ChunkMetadata per
// chunk, in order, with the final chunk possibly shorter than
// chunkSize. Progress is logged at most once a second.
func BuildMetadata(ctx context.Context, logger *slog.Logger, path string, chunkSize int) (wire.ImageMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return wire.ImageMetadata{}, fmt.Errorf("image: open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return wire.ImageMetadata{}, fmt.Errorf("image: stat %s: %w", path, err)
	}
	fileSize := uint64(info.Size())

	var chunks []wire.ChunkMetadata
	buf := make([]byte, chunkSize)

	startTime := time.Now()
	lastReport := startTime
	var pos, lastPos uint64

	for pos < fileSize {
		if err := ctx.Err(); err != nil {
			return wire.ImageMetadata{}, err
		}

		now := time.Now()
		if now.Sub(lastReport) >= time.Second && fileSize > 0 {
			elapsed := now.Sub(lastReport).Seconds()
			mbps := float64(pos-lastPos) / (1024 * 1024) / elapsed
			logger.Info("computing image metadata",
				slog.Uint64("percent", pos*100/fileSize),
				slog.Float64("mb_per_sec", imgcast.Round64(mbps, 2)),
			)
			lastReport = now
			lastPos = pos
		}

		n, err := f.Read(buf)
		if n > 0 {
			chunks = append(chunks, wire.ChunkMetadata{
				Offset: pos,
				Size:   uint32(n),
				Hash:   xxhash.Sum64(buf[:n]),
			})
			pos += uint64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return wire.ImageMetadata{}, fmt.Errorf("image: read %s: %w", path, err)
		}
	}

	logger.Info("image metadata generation completed",
		slog.Duration("elapsed", time.Since(startTime)),
		slog.Int("chunks", len(chunks)),
	)

	return wire.ImageMetadata{Chunks: chunks}, nil
}
