package executor

import (
	"testing"

	"printerfirm/gcode"
	"printerfirm/ports"
	"printerfirm/record"
	"printerfirm/targets/hostsim"
)

func testPins() Pins {
	return Pins{
		XStep: 1, XDir: 2,
		YStep: 3, YDir: 4,
		ZStep: 5, ZDir: 6,
		EStep: 7, EDir: 8,
		Nozzle: 9, Bed: 10, Cooler: 11,
	}
}

// testScale matches spec.md §8 scenario 1's steps-per-mm (100,100,400,104).
func testScale() gcode.AxisScale {
	return gcode.AxisScale{X: 100, Y: 100, Z: 400, E: 104}
}

// TestStraightLineMove is spec.md §8 end-to-end scenario 1: axis scale
// (100,100,400,104), acceleration disabled, G0 F1800 X0 Y0 then
// G1 F1800 X30 Y0 should emit exactly 3000 rising edges on X, none on
// Y/Z/E, over exactly 10000 ticks.
func TestStraightLineMove(t *testing.T) {
	gpio := hostsim.NewGpio()
	nozzleADC := &hostsim.VariableADC{}
	bedADC := &hostsim.VariableADC{}

	e := New(gpio, testPins(), testScale(), false)
	rec := record.Record{
		Opcode: record.OpMove,
		Family: record.FamilyMotion,
		Motion: record.Motion{
			X:            3000,
			Fetch:        1800,
			SegmentTime:  10000,
			SequenceTime: 10000,
		},
	}
	e.SetPrimarySource(NewBufferSource([]record.Record{rec}))

	status, err := e.NextCommand()
	if err != nil {
		t.Fatalf("NextCommand: %v", err)
	}
	if status != StatusIncomplete {
		t.Fatalf("expected Incomplete once a move starts, got %v", status)
	}

	ticks := 0
	for e.State()&StateMoving != 0 {
		e.ExecuteTick(nozzleADC, bedADC)
		ticks++
		if ticks > 20000 {
			t.Fatalf("move never completed")
		}
	}

	if ticks != 10000 {
		t.Fatalf("expected exactly 10000 ticks, got %d", ticks)
	}
	if got := gpio.RisingEdges(ports.Pin(1)); got != 3000 {
		t.Fatalf("expected 3000 X pulses, got %d", got)
	}
	if got := gpio.RisingEdges(ports.Pin(3)); got != 0 {
		t.Fatalf("expected 0 Y pulses, got %d", got)
	}

	status, err = e.NextCommand()
	if err != nil {
		t.Fatalf("NextCommand after move: %v", err)
	}
	if status != StatusFinished {
		t.Fatalf("expected Finished with no more records, got %v", status)
	}
}

// TestThermalWaitGatesNextCommand is spec.md §8 end-to-end scenario 5:
// M109 S210 should hold NextCommand at Incomplete until the regulator
// latches Reached, driven by the §8 property-7 environment model.
func TestThermalWaitGatesNextCommand(t *testing.T) {
	gpio := hostsim.NewGpio()
	nozzleADC := &hostsim.VariableADC{Value: 0}
	bedADC := &hostsim.VariableADC{}

	e := New(gpio, testPins(), testScale(), false)
	rec := record.Record{
		Opcode: record.OpWaitNozzle,
		Family: record.FamilySub,
		Sub:    record.Sub{S: 210},
	}
	e.SetPrimarySource(NewBufferSource([]record.Record{rec}))

	status, err := e.NextCommand()
	if err != nil {
		t.Fatalf("NextCommand: %v", err)
	}
	if status != StatusIncomplete {
		t.Fatalf("expected Incomplete while waiting, got %v", status)
	}

	for tick := 0; tick < 500000; tick++ {
		e.ExecuteTick(nozzleADC, bedADC)
		on, _ := gpio.Read(ports.Pin(9))
		if on {
			nozzleADC.Value++
		} else {
			nozzleADC.Value--
		}
		if e.State()&StateWaitNozzle == 0 {
			break
		}
	}

	if e.State()&StateWaitNozzle != 0 {
		t.Fatalf("nozzle wait never cleared")
	}

	status, err = e.NextCommand()
	if err != nil {
		t.Fatalf("NextCommand after wait clears: %v", err)
	}
	if status != StatusFinished {
		t.Fatalf("expected Finished, got %v", status)
	}
}

// TestPauseResumeSynthesizesReturnMove is spec.md §8 end-to-end
// scenario 4: after G99 saves state at (30,0), resuming from a fresh
// actual position of (0,0) synthesizes one move back to (30,0) at
// 1800 mm/min before the stored stream continues.
func TestPauseResumeSynthesizesReturnMove(t *testing.T) {
	gpio := hostsim.NewGpio()
	nozzleADC := &hostsim.VariableADC{}
	bedADC := &hostsim.VariableADC{}
	store := hostsim.NewBlockStore()

	// Simulate the state a G99 mid-print would have persisted: saved
	// logical position (30,0,0,30), but the device power-cycled with
	// the stepper motors physically still at the origin.
	e := New(gpio, testPins(), testScale(), false)
	e.primary.SavedX = 30
	e.primary.SavedE = 30
	if err := e.SaveState(store); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	continuation := []record.Record{{
		Opcode: record.OpMove,
		Family: record.FamilyMotion,
		Motion: record.Motion{X: 20, Fetch: 1800, SegmentTime: 100},
	}}
	src := NewBufferSource(continuation)

	e2 := New(gpio, testPins(), testScale(), false)
	if err := e2.Resume(store, src); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	// Resume arms a blocking wait on both heaters before the
	// synthesized move; simulate them already at setpoint.
	e2.nozzle.SetTarget(0)
	e2.bed.SetTarget(0)
	for i := 0; i < thermal_BucketSizeTicks(); i++ {
		e2.ExecuteTick(nozzleADC, bedADC)
	}

	status, err := e2.NextCommand()
	if err != nil {
		t.Fatalf("NextCommand: %v", err)
	}
	if status != StatusIncomplete {
		t.Fatalf("expected the synthesized resume move to start, got %v", status)
	}
	if e2.primary.ActualX != 30 {
		t.Fatalf("expected synthesized move to target saved position 30, got %d", e2.primary.ActualX)
	}

	for e2.State()&StateMoving != 0 {
		e2.ExecuteTick(nozzleADC, bedADC)
	}

	status, err = e2.NextCommand()
	if err != nil {
		t.Fatalf("NextCommand continuing stored stream: %v", err)
	}
	if status != StatusIncomplete {
		t.Fatalf("expected the stored stream's move to start next, got %v", status)
	}
}

// thermal_BucketSizeTicks gives the test a generous number of ticks to
// latch Reached when both setpoints are already zero (current voltage
// starts at zero too).
func thermal_BucketSizeTicks() int { return 20000 }
