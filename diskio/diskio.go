// Package diskio writes completed chunks to their final position in
// the output file, preallocating the file to the image's total size
// where the filesystem allows it.
package diskio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/vitalvas/imgcast"
)

// ChunkSource is satisfied by receiver.Chunk, kept structurally
// rather than imported to avoid a diskio -> receiver dependency.
type ChunkSource struct {
	Offset uint64
	Data   []byte
}

// Writer writes chunks to a single output file at their recorded
// offsets, logging throughput once a second.
type Writer struct {
	logger *slog.Logger
}

// NewWriter returns a Writer that logs through logger.
func NewWriter(logger *slog.Logger) *Writer {
	return &Writer{logger: logger}
}

// Run opens path for writing (creating it if absent, never
// truncating existing content), preallocates it to imageSize, and
// writes every chunk read from in until the channel closes or ctx is
// cancelled.
func (w *Writer) Run(ctx context.Context, path string, imageSize uint64, in <-chan ChunkSource) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("diskio: open %s: %w", path, err)
	}
	defer f.Close()

	if err := f.Truncate(int64(imageSize)); err != nil {
		w.logger.Warn("unable to resize output file", slog.String("error", err.Error()))
	}

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("diskio: stat %s: %w", path, err)
	}
	if uint64(info.Size()) < imageSize {
		return fmt.Errorf("diskio: file too small to fit image (%d < %d bytes)", info.Size(), imageSize)
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var count, lastCount uint64
	lastReport := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			now := time.Now()
			elapsed := now.Sub(lastReport).Seconds()
			mbps := float64(count-lastCount) / (1024 * 1024) / elapsed
			w.logger.Info("receiving image",
				slog.Uint64("bytes_left", imageSize-count),
				slog.Float64("mb_per_sec", imgcast.Round64(mbps, 2)),
			)
			lastReport = now
			lastCount = count

		case chunk, open := <-in:
			if !open {
				return nil
			}

			written := 0
			for written < len(chunk.Data) {
				n, err := f.WriteAt(chunk.Data[written:], int64(chunk.Offset)+int64(written))
				if err != nil {
					return fmt.Errorf("diskio: write at offset %d: %w", chunk.Offset, err)
				}
				if n == 0 {
					return fmt.Errorf("diskio: short write at offset %d", chunk.Offset)
				}
				written += n
			}

			count += uint64(written)
		}
	}
}
