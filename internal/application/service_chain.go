package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/vaultline/trustengine/internal/domain"
	"github.com/vaultline/trustengine/internal/ports"
)

// CaptureChain reconstructs the ordered hop chain for a session from the
// external hop collaborator, origin first. Each node is enriched with
// geolocation (degrading to Unknown when the resolver is down),
// blacklist membership and a deterministic per-node trust score.
func (s *Service) CaptureChain(ctx context.Context, session domain.SessionContext) (domain.ConnectionChain, error) {
	raw, err := s.hops.Hops(ctx, session)
	if err != nil {
		return domain.ConnectionChain{}, fmt.Errorf("%w: hop discovery: %v", domain.ErrExternalService, err)
	}
	if len(raw) == 0 {
		raw = []ports.RawHop{{
			IPAddress:      session.IPAddress,
			ConnectionType: string(domain.ConnectionDirect),
			ObservedAt:     session.ObservedAt,
		}}
	}

	// The provider reports nearest hop first; chains are stored origin
	// first, so reverse while building.
	nodes := make([]domain.ConnectionNode, len(raw))
	for i, hop := range raw {
		node := domain.ConnectionNode{
			IPAddress: hop.IPAddress,
			Type:      domain.NormalizeConnectionType(hop.ConnectionType),
			Timestamp: hop.ObservedAt,
			Packet:    hop.Packet,
		}
		node.GeoLocation, node.ISP = s.resolveGeo(ctx, hop.IPAddress)
		node.IsBlacklisted = s.nodeBlacklisted(ctx, hop.IPAddress)
		node.TrustScore = domain.NodeTrustScore(node.Type, node.Packet, node.IsBlacklisted)
		nodes[len(raw)-1-i] = node
	}
	if len(nodes) == 1 {
		nodes[0].Type = domain.ConnectionDirect
		nodes[0].TrustScore = domain.NodeTrustScore(domain.ConnectionDirect, nodes[0].Packet, nodes[0].IsBlacklisted)
	}

	chain := domain.ConnectionChain{
		SessionID:  session.SessionID,
		DeviceID:   session.DeviceID,
		Nodes:      nodes,
		CapturedAt: s.nowFn(),
	}
	if err := chain.Validate(); err != nil {
		return domain.ConnectionChain{}, err
	}
	return chain, nil
}

// Backtrace walks the chain from the current node toward the origin,
// applying an increasingly strict trust requirement per hop. It stops
// with success=false when a hop cannot be resolved, e.g. a Tor relay
// with no tunnel correlation. When several origin candidates remain, the
// lowest-trust candidate wins: assume the more suspicious node is the
// true origin. The trace log records every step and never drives control
// flow.
func (s *Service) Backtrace(ctx context.Context, chain domain.ConnectionChain) (BacktraceResult, error) {
	if err := chain.Validate(); err != nil {
		return BacktraceResult{}, err
	}

	result := BacktraceResult{}
	required := s.cfg.BacktraceBaseTrust
	for i := len(chain.Nodes) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return BacktraceResult{}, err
		}
		node := chain.Nodes[i]
		result.TraceLog = append(result.TraceLog, fmt.Sprintf(
			"hop %d: %s (%s) trust=%d required=%d", i, node.IPAddress, node.Type, node.TrustScore, required))

		if node.Type == domain.ConnectionTor && !node.Packet.TunnelIndicators {
			result.TraceLog = append(result.TraceLog, fmt.Sprintf(
				"hop %d: tor relay with no tunnel correlation, origin unrecoverable", i))
			s.recordBacktrace(ctx, chain, result)
			return result, nil
		}
		if i < len(chain.Nodes)-1 && node.TrustScore < required {
			result.TraceLog = append(result.TraceLog, fmt.Sprintf(
				"hop %d: trust %d below required %d, resolution abandoned", i, node.TrustScore, required))
			s.recordBacktrace(ctx, chain, result)
			return result, nil
		}
		required += s.cfg.BacktraceStrictnessStep
	}

	origin := s.pickOrigin(chain, &result)
	result.Success = true
	result.OriginIP = origin.IPAddress
	result.OriginLocation = origin.GeoLocation
	result.TraceLog = append(result.TraceLog, fmt.Sprintf("origin resolved: %s (%s)", origin.IPAddress, origin.GeoLocation))

	if device, err := s.originDevice(ctx, chain, origin); err == nil {
		result.OriginDevice = &device
	} else if !errors.Is(err, domain.ErrNotFound) {
		s.logger.WarnContext(ctx, "origin device lookup failed",
			"module", "application",
			"layer", "service",
			"operation", "backtrace",
			"outcome", "degraded",
			"origin_ip", origin.IPAddress,
			"error", err,
		)
	}

	s.recordBacktrace(ctx, chain, result)
	return result, nil
}

// pickOrigin applies the conservative tie-break when the chain carries
// more than one plausible origin.
func (s *Service) pickOrigin(chain domain.ConnectionChain, result *BacktraceResult) domain.ConnectionNode {
	candidates := []domain.ConnectionNode{chain.Origin()}
	for _, node := range chain.Nodes[1:] {
		if node.Type == domain.ConnectionDirect {
			candidates = append(candidates, node)
		}
	}
	if len(candidates) == 1 {
		return candidates[0]
	}

	origin := candidates[0]
	for _, candidate := range candidates[1:] {
		if candidate.TrustScore < origin.TrustScore {
			origin = candidate
		}
	}
	result.TraceLog = append(result.TraceLog, fmt.Sprintf(
		"ambiguous chain: %d origin candidates, preferring lowest trust %s (score %d)",
		len(candidates), origin.IPAddress, origin.TrustScore))
	return origin
}

func (s *Service) originDevice(ctx context.Context, chain domain.ConnectionChain, origin domain.ConnectionNode) (domain.Device, error) {
	// A direct single-hop chain originates from the session's own device.
	if chain.IsDirect() && chain.DeviceID != "" {
		return s.devices.GetByID(ctx, chain.DeviceID)
	}
	return s.devices.GetByLastIP(ctx, origin.IPAddress)
}

func (s *Service) recordBacktrace(ctx context.Context, chain domain.ConnectionChain, result BacktraceResult) {
	status := domain.LedgerStatusCompleted
	if !result.Success {
		status = domain.LedgerStatusFailed
	}
	s.mustLedger(ctx, domain.ActionChainBacktrace, status, "", "", chain.SessionID, domain.BacktraceMetadata{
		SessionID:      chain.SessionID,
		Success:        result.Success,
		OriginIP:       result.OriginIP,
		OriginLocation: result.OriginLocation,
		TraceLog:       result.TraceLog,
	})
}

func (s *Service) resolveGeo(ctx context.Context, ip string) (location, isp string) {
	info, err := s.geo.Resolve(ctx, ip)
	if err != nil {
		return "Unknown", "Unknown"
	}
	location = info.Country
	if info.City != "" {
		location = info.City + ", " + info.Country
	}
	if location == "" {
		location = "Unknown"
	}
	isp = info.ISP
	if isp == "" {
		isp = "Unknown"
	}
	return location, isp
}

func (s *Service) nodeBlacklisted(ctx context.Context, ip string) bool {
	if blocked, err := s.blockedIPs.IsBlocked(ctx, ip); err == nil && blocked {
		return true
	}
	entry, err := s.blacklist.Get(ctx, ip)
	if err != nil || entry == nil {
		return false
	}
	return entry.Active(s.nowFn())
}
