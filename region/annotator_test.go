package region

import (
	"testing"

	"printerfirm/gcode"
	"printerfirm/record"
)

var testScale = gcode.AxisScale{X: 100, Y: 100, Z: 400, E: 104}

func move(x, y, z, e int32, fetch uint32) *record.Record {
	return &record.Record{
		Opcode: record.OpMove,
		Family: record.FamilyMotion,
		Motion: record.Motion{X: x, Y: y, Z: z, E: e, Fetch: fetch},
	}
}

// TestRegionTimeSum exercises spec.md §8's region-time invariant: the
// base record's sequence_time equals the sum of every segment_time in
// the region, and every non-base record's sequence_time is zero.
func TestRegionTimeSum(t *testing.T) {
	a := NewAnnotator(testScale)

	recs := []*record.Record{
		move(3000, 0, 0, 0, 1800),
		move(3000, 0, 0, 0, 1800),
		move(3000, 0, 0, 0, 1800),
	}

	var base *record.Record
	for i, r := range recs {
		isNew := a.Observe(r)
		if i == 0 {
			if !isNew {
				t.Fatalf("first record in a stream must start a new region")
			}
			base = r
		} else {
			if isNew {
				t.Fatalf("record %d unexpectedly started a new region", i)
			}
			base.Motion.SequenceTime += r.Motion.SegmentTime
			if r.Motion.SequenceTime != 0 {
				t.Errorf("record %d sequence_time = %d, want 0", i, r.Motion.SequenceTime)
			}
		}
	}

	var sum uint32
	for _, r := range recs {
		sum += r.Motion.SegmentTime
	}
	if base.Motion.SequenceTime != sum {
		t.Errorf("base sequence_time = %d, want sum of segment_times %d", base.Motion.SequenceTime, sum)
	}
}

func TestRegionBreaksOnSharpAngle(t *testing.T) {
	a := NewAnnotator(testScale)
	if !a.Observe(move(3000, 0, 0, 0, 1800)) {
		t.Fatal("first record should start a region")
	}
	// A move perpendicular to the prior segment fails the cos(30°) test.
	if !a.Observe(move(0, 3000, 0, 0, 1800)) {
		t.Error("perpendicular move should start a new region")
	}
}

func TestRegionBreaksOnFetchChange(t *testing.T) {
	a := NewAnnotator(testScale)
	if !a.Observe(move(3000, 0, 0, 0, 1800)) {
		t.Fatal("first record should start a region")
	}
	if !a.Observe(move(3000, 0, 0, 0, 900)) {
		t.Error("fetch change should start a new region")
	}
}

func TestRegionContinuesOnShallowAngle(t *testing.T) {
	a := NewAnnotator(testScale)
	if !a.Observe(move(10000, 0, 0, 0, 1800)) {
		t.Fatal("first record should start a region")
	}
	// 10 degrees off the X axis: well within the 30 degree cone.
	if a.Observe(move(10000, 1763, 0, 0, 1800)) {
		t.Error("a shallow-angle move should continue the region")
	}
}

func TestTerminateResetsTracking(t *testing.T) {
	a := NewAnnotator(testScale)
	a.Observe(move(3000, 0, 0, 0, 1800))
	a.Terminate()
	if !a.Observe(move(3000, 0, 0, 0, 1800)) {
		t.Error("a move following Terminate must start a new region")
	}
}

func TestSegmentTimeFloorsOnStepCount(t *testing.T) {
	a := NewAnnotator(testScale)
	r := move(1, 0, 0, 0, 1)
	a.Observe(r)
	if r.Motion.SegmentTime < 1 {
		t.Errorf("segment_time = %d, want at least 1 tick per step", r.Motion.SegmentTime)
	}
}

func TestSegmentTimeHonorsVelocity(t *testing.T) {
	a := NewAnnotator(testScale)
	// 100000 steps at 100 steps/mm and a slow fetch demands many ticks.
	r := move(100000, 0, 0, 0, 60)
	a.Observe(r)
	// steps/stepsPerMM = 1000mm, at 60 mm/min that is 1000 seconds = 1e7 ticks.
	want := uint32(10000000)
	if r.Motion.SegmentTime != want {
		t.Errorf("segment_time = %d, want %d", r.Motion.SegmentTime, want)
	}
}
