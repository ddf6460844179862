package diskio

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWriterRunWritesChunksAtOffset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")

	w := NewWriter(discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan ChunkSource, 2)
	in <- ChunkSource{Offset: 5, Data: []byte("WORLD")}
	in <- ChunkSource{Offset: 0, Data: []byte("HELLO")}
	close(in)

	require.NoError(t, w.Run(ctx, path, 10, in))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "HELLOWORLD", string(got))
}

func TestWriterRunRejectsFileTooSmall(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "readonly.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 2), 0o644))
	require.NoError(t, os.Chmod(path, 0o444))
	t.Cleanup(func() { os.Chmod(path, 0o644) })

	w := NewWriter(discardLogger())
	in := make(chan ChunkSource)
	close(in)

	err := w.Run(context.Background(), path, 1000, in)
	assert.Error(t, err)
}

func TestWriterRunCancelled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")

	w := NewWriter(discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := make(chan ChunkSource)
	err := w.Run(ctx, path, 10, in)
	assert.ErrorIs(t, err, context.Canceled)
}
