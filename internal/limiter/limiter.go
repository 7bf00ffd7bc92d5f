// Package limiter locks out peers that keep presenting invalid credentials.
package limiter

import (
	"context"
	"net"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Limiter tracks failed authentications per peer.
type Limiter interface {
	// Allow reports whether peer may authenticate now and, if not, for how long it stays locked.
	Allow(ctx context.Context, peer []byte) (bool, time.Duration, error)
	// Failure records a failed attempt and reports whether it locked the peer.
	Failure(ctx context.Context, peer []byte) (bool, time.Duration, error)
}

// Policy bounds failed attempts. MaxFails <= 0 disables limiting.
type Policy struct {
	Window   time.Duration
	MaxFails int
	BlockFor time.Duration
}

// Enabled reports whether the policy limits anything.
func (p Policy) Enabled() bool { return p.MaxFails > 0 && p.BlockFor > 0 }

// PeerKey hashes the host part of a remote address so raw addresses are never stored.
// Ports are dropped: a client reconnecting from a new port is the same peer.
func PeerKey(addr string) []byte {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	h := blake2b.Sum256([]byte(addr))
	return h[:]
}
