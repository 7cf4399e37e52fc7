package debugconsole

import (
	"bytes"
	"strings"
	"testing"
)

func TestDumpSkipsEmptySlots(t *testing.T) {
	c := New()
	c.Record(Event{Type: EvtRegionStart, Tick: 10})
	c.Record(Event{Type: EvtThermalReached, Tick: 20, Value1: 210})

	var buf bytes.Buffer
	c.Dump(&buf)

	out := buf.String()
	if !strings.Contains(out, "REGION_START") || !strings.Contains(out, "tick=10") {
		t.Fatalf("missing first event in dump: %q", out)
	}
	if !strings.Contains(out, "THERMAL_REACHED") || !strings.Contains(out, "v1=210") {
		t.Fatalf("missing second event in dump: %q", out)
	}
	if strings.Count(out, "\n") != 2 {
		t.Fatalf("expected exactly 2 recorded lines, got: %q", out)
	}
}

func TestRecordWithoutPortNeverBlocks(t *testing.T) {
	c := New()
	c.SetEnabled(true) // enabled but no port attached
	for i := 0; i < RingSize*2; i++ {
		c.Record(Event{Type: EvtPreloadStall, Tick: uint64(i)})
	}
}
