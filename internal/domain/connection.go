package domain

import (
	"fmt"
	"strings"
	"time"
)

// ConnectionType classifies how a hop reaches the next one.
type ConnectionType string

const (
	ConnectionDirect     ConnectionType = "direct"
	ConnectionVPN        ConnectionType = "vpn"
	ConnectionProxy      ConnectionType = "proxy"
	ConnectionTor        ConnectionType = "tor"
	ConnectionRDP        ConnectionType = "rdp"
	ConnectionSSH        ConnectionType = "ssh"
	ConnectionTeamViewer ConnectionType = "team_viewer"
	ConnectionAnyDesk    ConnectionType = "any_desk"
	ConnectionUnknown    ConnectionType = "unknown"
)

// NormalizeConnectionType maps free-form detector output to the enum.
func NormalizeConnectionType(raw string) ConnectionType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "direct", "":
		return ConnectionDirect
	case "vpn":
		return ConnectionVPN
	case "proxy":
		return ConnectionProxy
	case "tor":
		return ConnectionTor
	case "rdp":
		return ConnectionRDP
	case "ssh":
		return ConnectionSSH
	case "team_viewer", "teamviewer":
		return ConnectionTeamViewer
	case "any_desk", "anydesk":
		return ConnectionAnyDesk
	default:
		return ConnectionUnknown
	}
}

// IsRemoteControlTool reports whether the type is an access tool operating
// the endpoint, as opposed to a transport relay in front of it.
func IsRemoteControlTool(t ConnectionType) bool {
	switch t {
	case ConnectionRDP, ConnectionSSH, ConnectionTeamViewer, ConnectionAnyDesk:
		return true
	default:
		return false
	}
}

// IsTransportRelay reports whether the type merely forwards traffic.
func IsTransportRelay(t ConnectionType) bool {
	switch t {
	case ConnectionVPN, ConnectionProxy, ConnectionTor:
		return true
	default:
		return false
	}
}

// PacketAnalysis carries per-hop traffic anomaly flags.
type PacketAnalysis struct {
	InconsistentHeaders bool
	TimeDelayAnomalies  bool
	TunnelIndicators    bool
}

// ConnectionNode is one hop in a captured chain.
type ConnectionNode struct {
	IPAddress     string
	GeoLocation   string
	ISP           string
	Type          ConnectionType
	Timestamp     time.Time
	TrustScore    int
	IsBlacklisted bool
	Packet        PacketAnalysis
}

// ConnectionChain is the ordered hop sequence for one session.
// Index 0 is the ultimate origin; the last index is the node currently
// making the request. Ordering is immutable once captured.
type ConnectionChain struct {
	SessionID  string
	DeviceID   string
	Nodes      []ConnectionNode
	CapturedAt time.Time
}

func (c ConnectionChain) Origin() ConnectionNode { return c.Nodes[0] }

func (c ConnectionChain) Current() ConnectionNode { return c.Nodes[len(c.Nodes)-1] }

// IsDirect reports whether the session reaches us without intermediaries.
func (c ConnectionChain) IsDirect() bool {
	return len(c.Nodes) == 1 && c.Nodes[0].Type == ConnectionDirect
}

// Validate enforces structural chain invariants. A chain of length 1
// must be a direct connection for its sole node.
func (c ConnectionChain) Validate() error {
	if len(c.Nodes) == 0 {
		return fmt.Errorf("%w: chain must contain at least one node", ErrInvalidInput)
	}
	if len(c.Nodes) == 1 && c.Nodes[0].Type != ConnectionDirect {
		return fmt.Errorf("%w: single-node chain must be direct, got %s", ErrInvalidInput, c.Nodes[0].Type)
	}
	return nil
}

// NodeTrustScore scores one hop from its classification and packet flags.
// It reuses the device deduction scale so chain and device scores compare.
func NodeTrustScore(t ConnectionType, packet PacketAnalysis, blacklisted bool) int {
	sig := DeviceSignals{
		UsesVPN:     t == ConnectionVPN,
		UsesProxy:   t == ConnectionProxy,
		UsesTor:     t == ConnectionTor,
		Blacklisted: blacklisted,
	}
	if IsRemoteControlTool(t) {
		sig.RemoteControlTool = string(t)
	}
	score := TrustScoreFromSignals(sig)
	if t == ConnectionUnknown {
		score -= 20
	}
	if packet.InconsistentHeaders {
		score -= 10
	}
	if packet.TimeDelayAnomalies {
		score -= 5
	}
	if packet.TunnelIndicators {
		score -= 10
	}
	return ClampTrustScore(score)
}
