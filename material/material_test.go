package material

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	var o Override
	copy(o.Name[:], "PLA")
	o.Nozzle, o.Bed, o.FlowPercent, o.Cooler = 210, 60, 0, 255

	got, err := Decode(o.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Nozzle != 210 || got.Bed != 60 || got.Cooler != 255 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.NormalizedFlow() != 100 {
		t.Fatalf("expected zero flow to normalize to 100, got %d", got.NormalizedFlow())
	}
}

func TestShadowingRules(t *testing.T) {
	o := Override{Nozzle: 180, Bed: 20, Cooler: 255}

	if got := o.ShadowNozzle(210); got != 180 {
		t.Fatalf("expected override to shadow non-zero commanded value, got %d", got)
	}
	if got := o.ShadowCooler(65); got != 255 {
		t.Fatalf("expected override to shadow cooler speed, got %d", got)
	}
	if got := o.ShadowNozzle(0); got != 0 {
		t.Fatalf("expected explicit shutdown (S0) to win over override, got %d", got)
	}
}

func TestBankCapsAtSixteen(t *testing.T) {
	var b Bank
	for i := 0; i < SlotCount; i++ {
		if err := b.Add(Override{Nozzle: uint16(i + 1)}); err != nil {
			t.Fatalf("unexpected error filling slot %d: %v", i, err)
		}
	}
	if err := b.Add(Override{Nozzle: 1}); err == nil {
		t.Fatalf("expected TooManyMaterials once the bank is full")
	}
}

func TestBankRoundTrip(t *testing.T) {
	var b Bank
	_ = b.Add(Override{Nozzle: 200, Bed: 60, Cooler: 128})
	_ = b.Add(Override{Nozzle: 210, Bed: 70, Cooler: 200})

	back := DecodeBank(b.Encode())
	if back.Count != 2 {
		t.Fatalf("expected 2 slots, got %d", back.Count)
	}
	if back.Slots[1].Nozzle != 210 {
		t.Fatalf("second slot mismatch: %+v", back.Slots[1])
	}
}
