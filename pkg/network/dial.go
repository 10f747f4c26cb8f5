package network

import (
	"context"
	"fmt"
	"net/url"
)

// Dial connects to a server by URL. ws:// and wss:// use WebSocket,
// udp:// uses datagrams.
func Dial(ctx context.Context, rawURL string, peers *PeerManager) (Link, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", rawURL, err)
	}

	switch u.Scheme {
	case "ws", "wss":
		return DialWS(ctx, rawURL, peers)
	case "udp":
		return DialUDP(ctx, u.Host, peers)
	default:
		return nil, fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
}
