package application

import (
	"context"
	"fmt"

	"github.com/vaultline/trustengine/internal/domain"
)

// Respond executes countermeasures for a session flagged as remote
// access. It evaluates, captures and backtraces on its own so it can be
// invoked standalone; RunSecurityScan calls the internal variant with
// the artifacts it already has.
func (s *Service) Respond(ctx context.Context, session domain.SessionContext) (CountermeasureResult, error) {
	snapshot, err := s.Evaluate(ctx, session)
	if err != nil {
		return CountermeasureResult{}, err
	}
	if !snapshot.IsRemoteAccess {
		return CountermeasureResult{}, fmt.Errorf("%w: countermeasures require a remote-access session", domain.ErrPolicyBlocked)
	}

	var chain *domain.ConnectionChain
	var backtrace *BacktraceResult
	if captured, err := s.CaptureChain(ctx, session); err == nil {
		chain = &captured
		if bt, err := s.Backtrace(ctx, captured); err == nil {
			backtrace = &bt
		}
	}
	return s.respond(ctx, session, snapshot, chain, backtrace)
}

// respond runs the ordered sub-actions: (1) blacklist the current device
// when its trust is below the policy threshold, (2) blacklist chain
// nodes that are access tools rather than transports, (3) block the
// resolved origin IP. Sub-actions are best-effort and independently
// logged; one failing does not roll back the others. Cancellation is
// honored between sub-actions so no sub-action is left half-applied.
func (s *Service) respond(ctx context.Context, session domain.SessionContext, snapshot domain.DeviceSecuritySnapshot, chain *domain.ConnectionChain, backtrace *BacktraceResult) (CountermeasureResult, error) {
	result := CountermeasureResult{}

	if domain.BlacklistEligible(snapshot.Device.TrustScore, s.cfg.BlacklistTrustThreshold) {
		_, err := s.Block(ctx, BlockRequest{
			DeviceID:    snapshot.Device.DeviceID,
			Fingerprint: snapshot.Device.Fingerprint,
			Reason: fmt.Sprintf("automatic countermeasure: trust score %d below threshold %d",
				snapshot.Device.TrustScore, s.cfg.BlacklistTrustThreshold),
		})
		if err != nil {
			s.logCountermeasureFailure(ctx, session.SessionID, "blacklist_current_device", err)
		} else {
			result.DevicesBlacklisted++
			result.ActionsPerformed = append(result.ActionsPerformed, "blacklist_current_device")
		}
	}

	if chain != nil {
		for _, node := range chain.Nodes {
			if !domain.IsRemoteControlTool(node.Type) {
				continue
			}
			if err := ctx.Err(); err != nil {
				return result, err
			}
			_, err := s.Block(ctx, BlockRequest{
				Fingerprint: node.IPAddress,
				Reason:      fmt.Sprintf("automatic countermeasure: %s access tool in connection chain", node.Type),
			})
			if err != nil {
				s.logCountermeasureFailure(ctx, session.SessionID, "blacklist_access_tool_node", err)
				continue
			}
			result.DevicesBlacklisted++
			result.ActionsPerformed = append(result.ActionsPerformed, "blacklist_access_tool:"+node.IPAddress)
		}
	}

	if backtrace != nil && backtrace.Success && backtrace.OriginIP != "" {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		reason := "automatic countermeasure: backtraced attack origin"
		if err := s.blockedIPs.Upsert(ctx, backtrace.OriginIP, reason, s.nowFn()); err != nil {
			s.logCountermeasureFailure(ctx, session.SessionID, "block_origin_ip", err)
		} else {
			result.AttackerIPBlocked = true
			result.ActionsPerformed = append(result.ActionsPerformed, "block_origin_ip:"+backtrace.OriginIP)
			s.mustLedger(ctx, domain.ActionIPBlock, domain.LedgerStatusCompleted, "", "", backtrace.OriginIP, domain.IPBlockMetadata{
				IPAddress: backtrace.OriginIP,
				Reason:    reason,
			})
		}
	}

	s.mustLedger(ctx, domain.ActionCountermeasure, domain.LedgerStatusCompleted, "", "", session.SessionID, domain.CountermeasureMetadata{
		SessionID:          session.SessionID,
		ActionsPerformed:   result.ActionsPerformed,
		DevicesBlacklisted: result.DevicesBlacklisted,
		AttackerIPBlocked:  result.AttackerIPBlocked,
	})
	return result, nil
}

func (s *Service) logCountermeasureFailure(ctx context.Context, sessionID, action string, err error) {
	s.logger.ErrorContext(ctx, "countermeasure sub-action failed",
		"module", "application",
		"layer", "service",
		"operation", "respond",
		"outcome", "partial_failure",
		"session_id", sessionID,
		"sub_action", action,
		"error", err,
	)
	s.mustLedger(ctx, domain.ActionCountermeasure, domain.LedgerStatusFailed, "", "", sessionID, domain.CountermeasureMetadata{
		SessionID:        sessionID,
		ActionsPerformed: []string{action + ":failed"},
	})
}

// ListBlockedIPs pages the network-level blocklist for the UI.
func (s *Service) ListBlockedIPs(ctx context.Context, limit, offset int) ([]string, error) {
	records, err := s.blockedIPs.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	ips := make([]string, 0, len(records))
	for _, r := range records {
		ips = append(ips, r.IPAddress)
	}
	return ips, nil
}
