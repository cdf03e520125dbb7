package daemon

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"google.golang.org/grpc"

	cpupmv1 "github.com/jamesainslie/cpupm/pkg/api/cpupm/v1"
)

// Config holds daemon configuration.
type Config struct {
	SocketPath string
	// SocketMode is applied to the socket after it is created, so that
	// unprivileged group members can reach a root daemon.
	SocketMode os.FileMode
}

// Server is the cpupmd gRPC server.
type Server struct {
	cfg      Config
	grpc     *grpc.Server
	listener net.Listener
}

// NewServer listens on cfg.SocketPath and registers svc.
func NewServer(cfg Config, svc cpupmv1.DaemonServer) (*Server, error) {
	// Remove stale socket if exists
	if err := os.RemoveAll(cfg.SocketPath); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.SocketPath), 0o755); err != nil {
		return nil, err
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(context.Background(), "unix", cfg.SocketPath)
	if err != nil {
		return nil, err
	}

	if cfg.SocketMode != 0 {
		if err := os.Chmod(cfg.SocketPath, cfg.SocketMode); err != nil {
			_ = listener.Close()
			return nil, fmt.Errorf("setting socket mode: %w", err)
		}
	}

	srv := &Server{
		cfg:      cfg,
		grpc:     grpc.NewServer(),
		listener: listener,
	}
	cpupmv1.RegisterDaemonServer(srv.grpc, svc)

	return srv, nil
}

// Addr returns the socket path.
func (s *Server) Addr() string {
	return s.cfg.SocketPath
}

// Serve starts the gRPC server. Blocks until stopped.
func (s *Server) Serve() error {
	return s.grpc.Serve(s.listener)
}

// Close stops the server and removes the socket.
func (s *Server) Close() error {
	s.grpc.GracefulStop()
	return os.RemoveAll(s.cfg.SocketPath)
}
