//go:build mdns

package node

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"

	"pinengine/internal/domain"
)

const mdnsScanTimeout = 5 * time.Second

// Enabled reports whether mDNS support was compiled in.
const Enabled = true

// MDNS advertises and browses pin engines via mDNS/DNS-SD.
type MDNS struct {
	logger *slog.Logger
}

// New creates an MDNS node.
func New(logger *slog.Logger) *MDNS {
	return &MDNS{logger: logger}
}

// Advertise registers svc on the local network. It blocks until ctx is
// cancelled; call it in a goroutine.
func (m *MDNS) Advertise(ctx context.Context, svc Service) error {
	server, err := zeroconf.Register(svc.Instance, svc.Type, svc.Domain, svc.Port, svc.TXT(), nil)
	if err != nil {
		return domain.NewSubSystemError("mdns", "MDNS.Advertise", domain.ErrUnavailable, err.Error())
	}

	m.logger.Info("mdns advertising", "instance", svc.Instance, "service", svc.Type, "port", svc.Port)
	<-ctx.Done()
	server.Shutdown()
	return nil
}

// Scan browses for services of type serviceType until ctx ends or the scan
// timeout elapses.
func (m *MDNS) Scan(ctx context.Context, serviceType, domainName string) ([]Peer, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("mdns resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	var mu sync.Mutex
	var peers []Peer
	var wg sync.WaitGroup

	scanCtx, cancel := context.WithTimeout(ctx, mdnsScanTimeout)
	defer cancel()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for entry := range entries {
			p := entryToPeer(entry)
			mu.Lock()
			peers = append(peers, p)
			mu.Unlock()
			m.logger.Debug("mdns discovered peer", "instance", p.Instance, "address", p.Address)
		}
	}()

	if err := resolver.Browse(scanCtx, serviceType, domainName, entries); err != nil {
		cancel()
		wg.Wait()
		return nil, fmt.Errorf("mdns browse: %w", err)
	}

	<-scanCtx.Done()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	out := make([]Peer, len(peers))
	copy(out, peers)
	return out, nil
}

func entryToPeer(entry *zeroconf.ServiceEntry) Peer {
	var address string
	if len(entry.AddrIPv4) > 0 {
		address = fmt.Sprintf("%s:%d", entry.AddrIPv4[0], entry.Port)
	} else if len(entry.AddrIPv6) > 0 {
		address = fmt.Sprintf("[%s]:%d", entry.AddrIPv6[0], entry.Port)
	}
	meta := parseTXTRecords(entry.Text)
	return Peer{
		Instance: entry.ServiceRecord.Instance,
		Address:  address,
		Pins:     meta["pins"],
		Version:  meta["version"],
		Metadata: meta,
		SeenAt:   time.Now(),
	}
}
