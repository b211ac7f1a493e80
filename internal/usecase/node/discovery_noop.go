//go:build !mdns

package node

import (
	"context"
	"log/slog"

	"pinengine/internal/domain"
)

// Enabled reports whether mDNS support was compiled in.
const Enabled = false

// MDNS is a placeholder used when mDNS support is not compiled in.
type MDNS struct {
	logger *slog.Logger
}

// New creates a placeholder node.
func New(logger *slog.Logger) *MDNS {
	return &MDNS{logger: logger}
}

// Advertise reports that mDNS is unavailable in this build.
func (m *MDNS) Advertise(_ context.Context, _ Service) error {
	return domain.NewSubSystemError("mdns", "MDNS.Advertise", domain.ErrDisabled, "build with -tags mdns")
}

// Scan returns nil: no discovery without the mdns build tag.
func (m *MDNS) Scan(_ context.Context, _, _ string) ([]Peer, error) {
	return nil, nil
}
