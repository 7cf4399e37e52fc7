package record

import "testing"

func TestMotionRoundTrip(t *testing.T) {
	in := Record{
		Opcode: OpMove,
		Family: FamilyMotion,
		Motion: Motion{X: 3000, Y: -150, Z: 0, E: 42, Fetch: 1800, SegmentTime: 10000, SequenceTime: 25000},
	}
	buf := in.Encode()
	if len(buf) != Size {
		t.Fatalf("encoded length = %d, want %d", len(buf), Size)
	}
	out, err := Decode(buf[:])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestSubRoundTrip(t *testing.T) {
	in := Record{
		Opcode: OpSetNozzleTemp,
		Family: FamilySub,
		Sub:    Sub{S: 210},
	}
	buf := in.Encode()
	out, err := Decode(buf[:])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestDecodeTruncated(t *testing.T) {
	_, err := Decode(make([]byte, 10))
	if err != ErrTruncated {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
}

func TestIsMotion(t *testing.T) {
	cases := []struct {
		op   Opcode
		want bool
	}{
		{OpMove, true},
		{OpHome, true},
		{OpSetPosition, true},
		{OpSavePosition, true},
		{OpSaveState, true},
		{OpSetNozzleTemp, false},
		{OpWaitNozzle, false},
		{OpSetBedTemp, false},
		{OpWaitBed, false},
		{OpSetCooler, false},
		{OpStartResume, false},
	}
	for _, c := range cases {
		if got := c.op.IsMotion(); got != c.want {
			t.Errorf("%v.IsMotion() = %v, want %v", c.op, got, c.want)
		}
	}
}
