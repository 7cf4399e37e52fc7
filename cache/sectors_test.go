package cache

import "testing"

func TestControlBlockRoundTrip(t *testing.T) {
	var cb ControlBlock
	cb.StartSector = 11
	copy(cb.Filename[:], "BENCHY.GCO")
	cb.CommandCount = 4200

	buf := EncodeControlBlock(cb)
	got, err := DecodeControlBlock(buf)
	if err != nil {
		t.Fatalf("DecodeControlBlock: %v", err)
	}
	if got != cb {
		t.Fatalf("round trip = %+v, want %+v", got, cb)
	}
}

func TestControlBlockRejectsBadGuard(t *testing.T) {
	var buf [512]byte
	if _, err := DecodeControlBlock(buf); err == nil {
		t.Fatal("expected error decoding an all-zero sector")
	}
}

// TestSaveStateIdempotent exercises spec.md §8 property 5: two
// back-to-back save_state calls with the same PrinterState produce
// byte-identical sector-4 contents.
func TestSaveStateIdempotent(t *testing.T) {
	s := PrinterState{SavedX: 3000, SavedY: 0, ActualX: 2500, CommandIndex: 7, CurrentSector: 13, Caret: 4}
	a := EncodeState(s)
	b := EncodeState(s)
	if a != b {
		t.Fatal("encoding the same PrinterState twice produced different bytes")
	}

	store := newFakeStore()
	if err := SaveState(store, s); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	if err := SaveState(store, s); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	got, err := LoadState(store)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if got != s {
		t.Fatalf("LoadState = %+v, want %+v", got, s)
	}
}
