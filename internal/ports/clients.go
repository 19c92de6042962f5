package ports

import (
	"context"
	"time"

	"github.com/vaultline/trustengine/internal/domain"
)

// GeoInfo is the resolver output for one IP address.
type GeoInfo struct {
	Country string
	City    string
	ISP     string
}

// GeoResolver looks up location/ISP data for an IP. It may be
// unavailable; callers degrade the fields to "Unknown" and continue.
type GeoResolver interface {
	Resolve(ctx context.Context, ip string) (GeoInfo, error)
}

// BiometricSample is an opaque verification payload plus its method.
type BiometricSample struct {
	Method  string
	Payload []byte
}

// BiometricVerifier scores a sample 0..100. The engine treats it as an
// opaque oracle; only the acceptance threshold and timeout are enforced
// on this side.
type BiometricVerifier interface {
	Verify(ctx context.Context, sample BiometricSample) (int, error)
}

// RawHop is one hop as reported by the network collaborator, nearest
// hop first (the node currently making the request leads the slice).
type RawHop struct {
	IPAddress      string
	ConnectionType string
	Packet         domain.PacketAnalysis
	ObservedAt     time.Time
}

// HopProvider discovers the hop sequence behind a session. Actual hop
// discovery is an external capability; the analyzer only orders,
// enriches and scores what it is given.
type HopProvider interface {
	Hops(ctx context.Context, session domain.SessionContext) ([]RawHop, error)
}
