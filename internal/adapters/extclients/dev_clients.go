package extclients

import (
	"context"
	"crypto/sha256"
	"log/slog"
	"time"

	"github.com/vaultline/trustengine/internal/domain"
	"github.com/vaultline/trustengine/internal/ports"
)

// Dev stand-ins for external collaborators. Production deployments swap
// these for real geo, biometric and network-capture integrations behind
// the same ports.

// StaticGeoResolver resolves every IP to a fixed answer, or to "Unknown"
// fields when constructed empty.
type StaticGeoResolver struct {
	info ports.GeoInfo
}

func NewStaticGeoResolver(info ports.GeoInfo) *StaticGeoResolver {
	return &StaticGeoResolver{info: info}
}

func (r *StaticGeoResolver) Resolve(_ context.Context, _ string) (ports.GeoInfo, error) {
	return r.info, nil
}

// DeterministicBiometricVerifier scores a sample from a stable digest of
// its payload. The same payload always scores the same, which makes
// local runs and tests reproducible without a biometric provider.
type DeterministicBiometricVerifier struct {
	logger *slog.Logger
}

func NewDeterministicBiometricVerifier(logger *slog.Logger) *DeterministicBiometricVerifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeterministicBiometricVerifier{logger: logger}
}

func (v *DeterministicBiometricVerifier) Verify(ctx context.Context, sample ports.BiometricSample) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	digest := sha256.Sum256(sample.Payload)
	score := int(digest[0]) % 101
	v.logger.DebugContext(ctx, "biometric sample scored",
		slog.String("module", "trustengine"),
		slog.String("layer", "extclients"),
		slog.String("method", sample.Method),
		slog.Int("score", score),
	)
	return score, nil
}

// DirectHopProvider reports a single direct hop built from the session's
// own address, i.e. no relays observed.
type DirectHopProvider struct{}

func NewDirectHopProvider() *DirectHopProvider {
	return &DirectHopProvider{}
}

func (p *DirectHopProvider) Hops(_ context.Context, session domain.SessionContext) ([]ports.RawHop, error) {
	return []ports.RawHop{{
		IPAddress:      session.IPAddress,
		ConnectionType: string(domain.ConnectionDirect),
		ObservedAt:     time.Now().UTC(),
	}}, nil
}
