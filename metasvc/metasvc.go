// Package metasvc implements the unicast TCP service a server uses to
// hand out encoded image metadata, and the client side that fetches
// it: a one-shot, read-to-EOF-then-decode request/response, since
// metadata is small, sent once per client, and never updates mid
// session.
package metasvc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/vitalvas/imgcast/wire"
	"github.com/vitalvas/imgcast/xcmd"
)

// Server listens on a unicast TCP socket and writes the encoded image
// metadata to every connecting client.
type Server struct {
	logger *slog.Logger
	addr   *xcmd.OnceValue[*net.TCPAddr]
}

// NewServer returns a Server that will publish its bound address to
// addr once listening starts; pass a fresh xcmd.NewOnceValue.
func NewServer(logger *slog.Logger, addr *xcmd.OnceValue[*net.TCPAddr]) *Server {
	return &Server{logger: logger, addr: addr}
}

// Run listens on bind, encodes meta once, and writes the encoded
// bytes to every connection, until ctx is cancelled.
func (s *Server) Run(ctx context.Context, bind *net.TCPAddr, meta wire.ImageMetadata) error {
	ln, err := net.ListenTCP("tcp", bind)
	if err != nil {
		return fmt.Errorf("metasvc: listen: %w", err)
	}
	defer ln.Close()

	s.addr.Set(ln.Addr().(*net.TCPAddr))
	payload := wire.EncodeImageMetadata(meta)

	s.logger.Info("listening for metadata transfers", slog.String("addr", ln.Addr().String()))

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.AcceptTCP()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("metasvc: accept: %w", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer conn.Close()

			s.logger.Debug("new metadata transfer", slog.String("remote", conn.RemoteAddr().String()))

			pos := 0
			for pos < len(payload) {
				n, err := conn.Write(payload[pos:])
				if n == 0 || err != nil {
					return
				}
				pos += n
			}
		}()
	}
}

// Fetch connects to addr, reads the full response, and decodes it as
// ImageMetadata.
func Fetch(ctx context.Context, addr *net.TCPAddr) (wire.ImageMetadata, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr.String())
	if err != nil {
		return wire.ImageMetadata{}, fmt.Errorf("metasvc: connect: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf, err := io.ReadAll(conn)
	if err != nil && ctx.Err() != nil {
		return wire.ImageMetadata{}, ctx.Err()
	}
	if err != nil {
		return wire.ImageMetadata{}, fmt.Errorf("metasvc: read: %w", err)
	}

	meta, err := wire.DecodeImageMetadata(buf)
	if err != nil {
		return wire.ImageMetadata{}, fmt.Errorf("metasvc: decode metadata: %w", err)
	}

	return meta, nil
}
