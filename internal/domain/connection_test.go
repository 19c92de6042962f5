package domain

import (
	"errors"
	"testing"
)

func TestNormalizeConnectionType(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want ConnectionType
	}{
		{"direct", ConnectionDirect},
		{"", ConnectionDirect},
		{"VPN", ConnectionVPN},
		{" proxy ", ConnectionProxy},
		{"tor", ConnectionTor},
		{"teamviewer", ConnectionTeamViewer},
		{"team_viewer", ConnectionTeamViewer},
		{"AnyDesk", ConnectionAnyDesk},
		{"rdp", ConnectionRDP},
		{"ssh", ConnectionSSH},
		{"carrier-pigeon", ConnectionUnknown},
	}
	for _, tc := range cases {
		if got := NormalizeConnectionType(tc.raw); got != tc.want {
			t.Errorf("NormalizeConnectionType(%q) = %s, want %s", tc.raw, got, tc.want)
		}
	}
}

func TestConnectionTypeClassification(t *testing.T) {
	t.Parallel()

	for _, ct := range []ConnectionType{ConnectionRDP, ConnectionSSH, ConnectionTeamViewer, ConnectionAnyDesk} {
		if !IsRemoteControlTool(ct) {
			t.Errorf("%s must be a remote control tool", ct)
		}
		if IsTransportRelay(ct) {
			t.Errorf("%s must not be a transport relay", ct)
		}
	}
	for _, ct := range []ConnectionType{ConnectionVPN, ConnectionProxy, ConnectionTor} {
		if !IsTransportRelay(ct) {
			t.Errorf("%s must be a transport relay", ct)
		}
		if IsRemoteControlTool(ct) {
			t.Errorf("%s must not be a remote control tool", ct)
		}
	}
	if IsRemoteControlTool(ConnectionDirect) || IsTransportRelay(ConnectionDirect) {
		t.Error("direct is neither a tool nor a relay")
	}
}

func TestConnectionChainValidate(t *testing.T) {
	t.Parallel()

	empty := ConnectionChain{SessionID: "s1"}
	if err := empty.Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty chain error = %v, want ErrInvalidInput", err)
	}

	single := ConnectionChain{Nodes: []ConnectionNode{{IPAddress: "1.2.3.4", Type: ConnectionVPN}}}
	if err := single.Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("single non-direct node error = %v, want ErrInvalidInput", err)
	}

	direct := ConnectionChain{Nodes: []ConnectionNode{{IPAddress: "1.2.3.4", Type: ConnectionDirect}}}
	if err := direct.Validate(); err != nil {
		t.Fatalf("valid direct chain rejected: %v", err)
	}
	if !direct.IsDirect() {
		t.Fatal("single direct node must report IsDirect")
	}

	multi := ConnectionChain{Nodes: []ConnectionNode{
		{IPAddress: "10.0.0.1", Type: ConnectionDirect},
		{IPAddress: "10.0.0.2", Type: ConnectionVPN},
	}}
	if err := multi.Validate(); err != nil {
		t.Fatalf("valid multi-hop chain rejected: %v", err)
	}
	if multi.IsDirect() {
		t.Fatal("multi-hop chain must not report IsDirect")
	}
	if multi.Origin().IPAddress != "10.0.0.1" {
		t.Fatalf("origin = %s, want 10.0.0.1", multi.Origin().IPAddress)
	}
	if multi.Current().IPAddress != "10.0.0.2" {
		t.Fatalf("current = %s, want 10.0.0.2", multi.Current().IPAddress)
	}
}

func TestNodeTrustScore(t *testing.T) {
	t.Parallel()

	if got := NodeTrustScore(ConnectionDirect, PacketAnalysis{}, false); got != 100 {
		t.Fatalf("clean direct node = %d, want 100", got)
	}
	if got := NodeTrustScore(ConnectionTor, PacketAnalysis{}, false); got != 60 {
		t.Fatalf("tor node = %d, want 60", got)
	}
	if got := NodeTrustScore(ConnectionUnknown, PacketAnalysis{}, false); got != 80 {
		t.Fatalf("unknown node = %d, want 80", got)
	}
	if got := NodeTrustScore(ConnectionRDP, PacketAnalysis{}, false); got != 75 {
		t.Fatalf("rdp node = %d, want 75", got)
	}

	anomalous := PacketAnalysis{InconsistentHeaders: true, TimeDelayAnomalies: true, TunnelIndicators: true}
	if got := NodeTrustScore(ConnectionDirect, anomalous, false); got != 75 {
		t.Fatalf("anomalous direct node = %d, want 75", got)
	}

	floor := NodeTrustScore(ConnectionTor, anomalous, true)
	if floor < MinTrustScore || floor > MaxTrustScore {
		t.Fatalf("score %d escapes bounds", floor)
	}
}
