package gcode

import (
	"testing"

	"printerfirm/record"
)

var testScale = AxisScale{X: 100, Y: 100, Z: 400, E: 104}

func mustCompile(t *testing.T, c *Compiler, line string) (record.Record, bool) {
	t.Helper()
	cmd, class := ParseLine(line)
	if class != CommandBuilt {
		t.Fatalf("ParseLine(%q) class = %v", line, class)
	}
	rec, emit, err := c.Compile(cmd)
	if err != nil {
		t.Fatalf("Compile(%q): %v", line, err)
	}
	return rec, emit
}

func TestCompileStraightLineMove(t *testing.T) {
	c := NewCompiler(testScale)
	mustCompile(t, c, "G0 F1800 X0 Y0")
	rec, emit := mustCompile(t, c, "G1 F1800 X30 Y0")
	if !emit {
		t.Fatal("expected a record")
	}
	if rec.Motion.X != 3000 || rec.Motion.Y != 0 {
		t.Errorf("deltas = (%d,%d), want (3000,0)", rec.Motion.X, rec.Motion.Y)
	}
	if rec.Motion.Fetch != 1800 {
		t.Errorf("fetch = %d, want 1800", rec.Motion.Fetch)
	}
}

func TestCompileRelativeNotAccumulatedFromOrigin(t *testing.T) {
	c := NewCompiler(testScale)
	mustCompile(t, c, "G0 X0 Y0")
	mustCompile(t, c, "G91")
	mustCompile(t, c, "G0 X30")
	rec, _ := mustCompile(t, c, "G0 X50")
	if rec.Motion.X != 50*testScale.X {
		t.Errorf("delta X = %d, want %d", rec.Motion.X, 50*testScale.X)
	}
}

func TestCompileHomeForcesAbsoluteAndFetch(t *testing.T) {
	c := NewCompiler(testScale)
	mustCompile(t, c, "G91")
	mustCompile(t, c, "G0 X30 Y30")
	rec, _ := mustCompile(t, c, "G28")
	if rec.Motion.Fetch != HomingFetch {
		t.Errorf("fetch = %d, want %d", rec.Motion.Fetch, HomingFetch)
	}
	x, y, z, _ := c.Position()
	if x != 0 || y != 0 || z != 0 {
		t.Errorf("position after home = (%d,%d,%d), want zero", x, y, z)
	}
}

func TestCompileSetPositionEmitsAbsoluteNoDelta(t *testing.T) {
	c := NewCompiler(testScale)
	mustCompile(t, c, "G0 X10 Y10")
	rec, emit := mustCompile(t, c, "G92 X0 Y0")
	if !emit {
		t.Fatal("expected a record")
	}
	if rec.Opcode != record.OpSetPosition {
		t.Errorf("opcode = %v, want OpSetPosition", rec.Opcode)
	}
	if rec.Motion.X != 0 || rec.Motion.Y != 0 {
		t.Errorf("G92 payload = (%d,%d), want (0,0)", rec.Motion.X, rec.Motion.Y)
	}
	x, y, _, _ := c.Position()
	if x != 0 || y != 0 {
		t.Errorf("position after G92 = (%d,%d), want (0,0)", x, y)
	}
}

func TestCompileModalSwitchesEmitNothing(t *testing.T) {
	c := NewCompiler(testScale)
	for _, line := range []string{"G90", "G91", "M82", "M83"} {
		cmd, class := ParseLine(line)
		if class != CommandBuilt {
			t.Fatalf("ParseLine(%q) class = %v", line, class)
		}
		_, emit, err := c.Compile(cmd)
		if err != nil {
			t.Fatalf("Compile(%q): %v", line, err)
		}
		if emit {
			t.Errorf("%q should not emit a record", line)
		}
	}
}

func TestCompileFetchClamp(t *testing.T) {
	c := NewCompiler(testScale)
	c.MaxFetch = 1000
	rec, _ := mustCompile(t, c, "G1 F5000 X10")
	if rec.Motion.Fetch != 1000 {
		t.Errorf("fetch = %d, want clamp 1000", rec.Motion.Fetch)
	}
}

func TestCompileMaterialM104AcceptsZero(t *testing.T) {
	c := NewCompiler(testScale)
	rec, emit := mustCompile(t, c, "M104 S0")
	if !emit {
		t.Fatal("expected a record")
	}
	if rec.Sub.S != 0 {
		t.Errorf("S = %d, want 0", rec.Sub.S)
	}
}

func TestCompileCoolerOffForcesZero(t *testing.T) {
	c := NewCompiler(testScale)
	rec, emit := mustCompile(t, c, "M107")
	if !emit {
		t.Fatal("expected a record")
	}
	if rec.Opcode != record.OpSetCooler || rec.Sub.S != 0 {
		t.Errorf("M107 record = %+v, want OpSetCooler S=0", rec)
	}
}

func TestCompileUnknownMDropped(t *testing.T) {
	c := NewCompiler(testScale)
	cmd, class := ParseLine("M999")
	if class != CommandBuilt {
		t.Fatalf("class = %v", class)
	}
	_, emit, err := c.Compile(cmd)
	if err != nil || emit {
		t.Fatalf("expected silent drop, got emit=%v err=%v", emit, err)
	}
}
