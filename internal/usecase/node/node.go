// Package node announces this pin engine on the local network and finds
// its peers.
package node

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"pinengine/internal/domain"
	"pinengine/internal/infra/config"
)

// Service describes what Advertise registers.
type Service struct {
	Instance string
	Type     string // e.g. "_pinengine._tcp"
	Domain   string
	Port     int
	Pins     domain.PinRange
	Version  string
}

// Peer is a pin engine seen on the network.
type Peer struct {
	Instance string
	Address  string
	Pins     string
	Version  string
	Metadata map[string]string
	SeenAt   time.Time
}

// ServiceFromConfig builds a Service for an HTTP listener at addr.
func ServiceFromConfig(cfg config.MDNSConfig, addr string, pins domain.PinRange, version string) (Service, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return Service{}, fmt.Errorf("mdns: listener address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return Service{}, fmt.Errorf("mdns: listener port %q is not usable", portStr)
	}
	return Service{
		Instance: cfg.Instance,
		Type:     cfg.Service,
		Domain:   cfg.Domain,
		Port:     port,
		Pins:     pins,
		Version:  version,
	}, nil
}

// TXT returns the DNS-SD TXT records in a stable order.
func (s Service) TXT() []string {
	meta := map[string]string{
		"pins":    s.Pins.String(),
		"version": s.Version,
	}
	txt := make([]string, 0, len(meta))
	for k, v := range meta {
		if v != "" {
			txt = append(txt, k+"="+v)
		}
	}
	sort.Strings(txt)
	return txt
}

func parseTXTRecords(txt []string) map[string]string {
	m := make(map[string]string, len(txt))
	for _, t := range txt {
		if k, v, ok := strings.Cut(t, "="); ok {
			m[k] = v
		}
	}
	return m
}
