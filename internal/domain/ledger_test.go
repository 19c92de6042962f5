package domain

import (
	"encoding/json"
	"testing"
)

func TestCanTransitionLedgerStatus(t *testing.T) {
	t.Parallel()

	allowed := [][2]string{
		{LedgerStatusPending, LedgerStatusConfirmed},
		{LedgerStatusPending, LedgerStatusCompleted},
		{LedgerStatusPending, LedgerStatusFailed},
		{LedgerStatusConfirmed, LedgerStatusCompleted},
		{LedgerStatusConfirmed, LedgerStatusFailed},
	}
	for _, pair := range allowed {
		if !CanTransitionLedgerStatus(pair[0], pair[1]) {
			t.Errorf("%s -> %s must be allowed", pair[0], pair[1])
		}
	}

	denied := [][2]string{
		{LedgerStatusCompleted, LedgerStatusPending},
		{LedgerStatusCompleted, LedgerStatusFailed},
		{LedgerStatusFailed, LedgerStatusPending},
		{LedgerStatusAlert, LedgerStatusCompleted},
		{LedgerStatusConfirmed, LedgerStatusPending},
	}
	for _, pair := range denied {
		if CanTransitionLedgerStatus(pair[0], pair[1]) {
			t.Errorf("%s -> %s must be denied", pair[0], pair[1])
		}
	}
}

func TestDecodeLedgerMetadata(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(BlockMetadata{DeviceID: "dev-1", Reason: "low trust"})
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeLedgerMetadata(ActionDeviceBlock, raw)
	if err != nil {
		t.Fatalf("decode block metadata: %v", err)
	}
	block, ok := decoded.(*BlockMetadata)
	if !ok {
		t.Fatalf("decoded type = %T, want *BlockMetadata", decoded)
	}
	if block.DeviceID != "dev-1" || block.Reason != "low trust" {
		t.Fatalf("decoded payload = %+v", block)
	}

	raw, err = json.Marshal(SweepMetadata{RemovedCount: 2, RemovedKeys: []string{"dev-1", "fp-2"}})
	if err != nil {
		t.Fatal(err)
	}
	decoded, err = DecodeLedgerMetadata(ActionBlacklistSweep, raw)
	if err != nil {
		t.Fatalf("decode sweep metadata: %v", err)
	}
	sweep, ok := decoded.(*SweepMetadata)
	if !ok {
		t.Fatalf("decoded type = %T, want *SweepMetadata", decoded)
	}
	if sweep.RemovedCount != 2 || len(sweep.RemovedKeys) != 2 {
		t.Fatalf("decoded sweep = %+v", sweep)
	}

	// Unknown actions are skipped, not errored.
	decoded, err = DecodeLedgerMetadata("future_action", raw)
	if err != nil || decoded != nil {
		t.Fatalf("unknown action = (%v, %v), want (nil, nil)", decoded, err)
	}

	if _, err := DecodeLedgerMetadata(ActionBurn, json.RawMessage(`{not json`)); err == nil {
		t.Fatal("malformed payload must fail to decode")
	}

	// Empty payloads decode to the zero variant.
	decoded, err = DecodeLedgerMetadata(ActionRecoveryStart, nil)
	if err != nil {
		t.Fatalf("empty payload: %v", err)
	}
	if _, ok := decoded.(*RecoveryMetadata); !ok {
		t.Fatalf("empty payload type = %T, want *RecoveryMetadata", decoded)
	}
}
