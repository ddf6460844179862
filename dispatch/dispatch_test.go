package dispatch

import (
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vitalvas/imgcast/wire"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMaxFragmentSizeFitsBudget(t *testing.T) {
	budget := 1500 - 20 - 8
	size := MaxFragmentSize(budget)
	require.Greater(t, size, 0)

	encoded := wire.EncodeChunkData(wire.ChunkData{
		Chunk:  0xFFFFFFFF,
		Offset: 0xFFFFFFFF,
		Data:   make([]byte, size),
	})
	require.LessOrEqual(t, len(encoded), budget)

	oneMore := wire.EncodeChunkData(wire.ChunkData{
		Chunk:  0xFFFFFFFF,
		Offset: 0xFFFFFFFF,
		Data:   make([]byte, size+1),
	})
	require.Greater(t, len(oneMore), budget)
}

func TestListenRequestsForwardsValidIDs(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	defer conn.Close()

	client, err := net.DialUDP("udp", nil, conn.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ids := make(chan uint32, 10)
	go func() {
		_ = ListenRequests(ctx, discardLogger(), conn, 5, ids)
	}()

	payload := wire.EncodeChunkRequest(wire.ChunkRequest{IDs: []uint32{1, 3, 99}})
	_, err = client.Write(payload)
	require.NoError(t, err)

	select {
	case id := <-ids:
		require.Equal(t, uint32(1), id)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for id")
	}

	select {
	case id := <-ids:
		require.Equal(t, uint32(3), id)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for id")
	}

	select {
	case id := <-ids:
		t.Fatalf("unexpected id %d forwarded for out-of-range request", id)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestListenRequestsRespectsCancellation(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- ListenRequests(ctx, discardLogger(), conn, 5, make(chan uint32))
	}()

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("ListenRequests did not return after context cancellation")
	}
}

func TestDispatcherRunSendsFragments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.bin")
	content := []byte("HELLO WORLD!")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	meta := wire.ImageMetadata{Chunks: []wire.ChunkMetadata{
		{Offset: 0, Size: uint32(len(content)), Hash: 0},
	}}

	d := NewDispatcher(discardLogger(), path, meta, 1500-20-8, 10_000_000)

	serverConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	defer serverConn.Close()

	clientConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	defer clientConn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ids := make(chan uint32, 1)
	ids <- 0

	go func() {
		_ = d.Run(ctx, serverConn, clientConn.LocalAddr(), ids)
	}()

	buf := make([]byte, 2048)
	require.NoError(t, clientConn.SetReadDeadline(time.Now().Add(time.Second)))
	n, err := clientConn.Read(buf)
	require.NoError(t, err)

	frag, err := wire.DecodeChunkData(buf[:n])
	require.NoError(t, err)
	require.Equal(t, uint32(0), frag.Chunk)
	require.Equal(t, content, frag.Data)
}
