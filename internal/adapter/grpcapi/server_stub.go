//go:build !grpc

package grpcapi

import (
	"log/slog"

	"pinengine/internal/domain"
)

// Enabled reports whether gRPC support was compiled in.
const Enabled = false

// Server is a placeholder used when gRPC support is not compiled in.
type Server struct{}

// NewServer creates a placeholder server.
func NewServer(_ Engine, _ domain.PinDriver, _ *slog.Logger) *Server {
	return &Server{}
}

// Start reports that gRPC is unavailable in this build.
func (s *Server) Start(_ string) error {
	return domain.NewSubSystemError("grpc", "Server.Start", domain.ErrDisabled, "build with -tags grpc")
}

func (s *Server) Addr() string { return "" }

func (s *Server) Stop() {}
