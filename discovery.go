package main

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/grandcat/zeroconf"
)

const hueService = "_hue._tcp"

// Bridge represents a discovered Philips Hue Bridge on the network.
type Bridge struct {
	ID   string
	Name string
	IP   net.IP
	Port int
}

func (b Bridge) String() string {
	return fmt.Sprintf("%s (%s) at %s:%d", b.Name, b.ID, b.IP, b.Port)
}

// DiscoverBridges browses mDNS for Hue bridges until ctx is done and
// returns every bridge seen, deduplicated by bridge ID.
func DiscoverBridges(ctx context.Context) ([]Bridge, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("creating mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, hueService, "local.", entries); err != nil {
		return nil, fmt.Errorf("browsing for Hue bridges: %w", err)
	}

	// The resolver closes entries once ctx is done.
	var bridges []Bridge
	seen := make(map[string]bool)
	for entry := range entries {
		b := parseBridge(entry)
		if b.ID != "" {
			if seen[b.ID] {
				continue
			}
			seen[b.ID] = true
		}
		bridges = append(bridges, b)
	}
	return bridges, nil
}

func parseBridge(entry *zeroconf.ServiceEntry) Bridge {
	b := Bridge{
		Name: entry.Instance,
		Port: entry.Port,
	}

	if len(entry.AddrIPv4) > 0 {
		b.IP = entry.AddrIPv4[0]
	} else if len(entry.AddrIPv6) > 0 {
		b.IP = entry.AddrIPv6[0]
	}

	for _, txt := range entry.Text {
		key, value, ok := strings.Cut(txt, "=")
		if ok && key == "bridgeid" {
			b.ID = value
		}
	}
	return b
}
