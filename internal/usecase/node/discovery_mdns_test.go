//go:build mdns

package node

import (
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
)

func TestEntryToPeer(t *testing.T) {
	entry := zeroconf.NewServiceEntry("bench-esp", "_pinengine._tcp", "local.")
	entry.Port = 8080
	entry.Text = []string{"pins=0-33", "version=1.0.0"}
	entry.AddrIPv4 = append(entry.AddrIPv4, net.IP{192, 168, 1, 10})

	p := entryToPeer(entry)
	if p.Instance != "bench-esp" {
		t.Errorf("Instance = %q, want bench-esp", p.Instance)
	}
	if p.Address != "192.168.1.10:8080" {
		t.Errorf("Address = %q, want 192.168.1.10:8080", p.Address)
	}
	if p.Pins != "0-33" || p.Version != "1.0.0" {
		t.Errorf("TXT not parsed: %+v", p.Metadata)
	}
}
