package domain

import (
	"time"
)

const (
	// MaxTrustScore and MinTrustScore bound every computed score.
	MaxTrustScore = 100
	MinTrustScore = 0

	// NeutralTrustScore is assigned to a device created without a usable
	// fingerprint. A missing fingerprint is not an error, just an unknown.
	NeutralTrustScore = 70
)

// Trust deductions per named signal. Scores must be reproducible from
// explicit signals, so every deduction is a named constant rather than
// something sampled at evaluation time.
const (
	penaltyVPN           = 15
	penaltyProxy         = 20
	penaltyTor           = 40
	penaltyRemoteControl = 25
	penaltyMalicious     = 50
	penaltyBlacklisted   = 30
)

// Device is the registry aggregate for one observed endpoint.
// Devices are never deleted; blacklisted devices stay for audit.
type Device struct {
	DeviceID        string
	Fingerprint     string
	TrustScore      int
	FirstSeen       time.Time
	LastSeen        time.Time
	LastIP          string
	IsCurrentDevice bool
	OS              string
	Browser         string
	DeviceType      string
}

// DeviceSignals are the named inputs to trust scoring for one evaluation.
// Callers populate them from observed session state; scoring itself is pure.
type DeviceSignals struct {
	UsesVPN              bool
	UsesProxy            bool
	UsesTor              bool
	RemoteControlTool    string
	KnownMaliciousSource bool
	Blacklisted          bool
}

// RemoteAccess reports whether any indirect-access indicator is present.
func (s DeviceSignals) RemoteAccess() bool {
	return s.UsesVPN || s.UsesProxy || s.UsesTor || s.RemoteControlTool != ""
}

// Indicators lists the active signals in a stable order for audit records.
func (s DeviceSignals) Indicators() []string {
	var out []string
	if s.UsesVPN {
		out = append(out, "vpn")
	}
	if s.UsesProxy {
		out = append(out, "proxy")
	}
	if s.UsesTor {
		out = append(out, "tor")
	}
	if s.RemoteControlTool != "" {
		out = append(out, "remote_control:"+s.RemoteControlTool)
	}
	if s.KnownMaliciousSource {
		out = append(out, "known_malicious_source")
	}
	if s.Blacklisted {
		out = append(out, "blacklisted")
	}
	return out
}

// TrustScoreFromSignals computes the deterministic trust score for one
// evaluation: base 100, fixed deduction per active signal, floored at 0.
func TrustScoreFromSignals(s DeviceSignals) int {
	score := MaxTrustScore
	if s.UsesVPN {
		score -= penaltyVPN
	}
	if s.UsesProxy {
		score -= penaltyProxy
	}
	if s.UsesTor {
		score -= penaltyTor
	}
	if s.RemoteControlTool != "" {
		score -= penaltyRemoteControl
	}
	if s.KnownMaliciousSource {
		score -= penaltyMalicious
	}
	if s.Blacklisted {
		score -= penaltyBlacklisted
	}
	return ClampTrustScore(score)
}

// ClampTrustScore bounds a score to [MinTrustScore, MaxTrustScore].
func ClampTrustScore(score int) int {
	if score < MinTrustScore {
		return MinTrustScore
	}
	if score > MaxTrustScore {
		return MaxTrustScore
	}
	return score
}

// BlacklistEligible reports whether a score qualifies the device for
// automatic blacklisting. Eligibility does not blacklist by itself; the
// owning check decides whether to act on it.
func BlacklistEligible(score, threshold int) bool {
	return score < threshold
}

// DeviceSecuritySnapshot is the evaluation outcome for one session check.
type DeviceSecuritySnapshot struct {
	Device            Device
	IsRemoteAccess    bool
	Indicators        []string
	IsBlacklisted     bool
	BlacklistEligible bool
	EvaluatedAt       time.Time
}

// SessionContext is the observed state of the session under check.
// Signals are injected by the caller so evaluation stays deterministic.
type SessionContext struct {
	SessionID   string
	UserID      string
	DeviceID    string
	Fingerprint string
	IPAddress   string
	UserAgent   string
	DeviceName  string
	DeviceOS    string
	DeviceType  string
	Signals     DeviceSignals
	ObservedAt  time.Time
}
