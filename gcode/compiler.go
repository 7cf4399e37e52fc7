package gcode

import (
	"printerfirm/record"
)

// AxisScale holds the four immutable steps-per-millimeter factors
// (spec.md §3). E is the extruder.
type AxisScale struct {
	X, Y, Z, E int32
}

// HomingFetch is the fetch speed forced on every G28 (spec.md §4.2).
const HomingFetch uint32 = 1800

// Compiler drives modal state and emits record.Record values.
// It is the direct analogue of standalone/gcode/interpreter.go's
// Execute/doMove/doSetPosition, but emits binary records instead of
// mutating a live MachineState, and adds the fetch-speed clamp and
// relative/absolute bookkeeping spec.md §4.2 requires.
type Compiler struct {
	scale AxisScale

	absoluteMotion    bool
	absoluteExtrusion bool

	curX, curY, curZ, curE int32 // last emitted absolute position, steps

	// MaxFetch clamps the parsed fetch speed when non-zero.
	MaxFetch uint32
}

// NewCompiler creates a compiler starting in absolute motion and
// absolute extrusion mode (the conventional G-code boot default).
func NewCompiler(scale AxisScale) *Compiler {
	return &Compiler{
		scale:             scale,
		absoluteMotion:    true,
		absoluteExtrusion: true,
	}
}

// Position returns the compiler's current absolute position in steps.
func (c *Compiler) Position() (x, y, z, e int32) {
	return c.curX, c.curY, c.curZ, c.curE
}

// Compile converts one tokenized command into zero or one records.
// emit is false for modal switches and no-op/ignored commands.
func (c *Compiler) Compile(cmd Command) (rec record.Record, emit bool, err error) {
	switch cmd.Family {
	case 'G':
		return c.compileG(cmd)
	case 'M':
		return c.compileM(cmd)
	}
	return record.Record{}, false, nil
}

func (c *Compiler) compileG(cmd Command) (record.Record, bool, error) {
	switch cmd.Index {
	case 0, 1: // G0/G1 linear move
		return c.compileMove(cmd), true, nil
	case 28: // G28 home
		return c.compileHome(cmd), true, nil
	case 90: // absolute positioning
		c.absoluteMotion = true
		return record.Record{}, false, nil
	case 91: // relative positioning
		c.absoluteMotion = false
		return record.Record{}, false, nil
	case 92: // set position
		return c.compileSetPosition(cmd), true, nil
	case 60: // save position
		return c.snapshot(record.OpSavePosition), true, nil
	case 99: // save state (full PrinterState, per spec.md §9)
		return c.snapshot(record.OpSaveState), true, nil
	}
	return record.Record{}, false, nil
}

func (c *Compiler) compileM(cmd Command) (record.Record, bool, error) {
	switch cmd.Index {
	case 24: // start/resume
		return record.Record{Opcode: record.OpStartResume, Family: record.FamilySub}, true, nil
	case 82: // absolute extrusion
		c.absoluteExtrusion = true
		return record.Record{}, false, nil
	case 83: // relative extrusion
		c.absoluteExtrusion = false
		return record.Record{}, false, nil
	case 104: // set nozzle temp
		return c.compileSub(record.OpSetNozzleTemp, cmd, 0), true, nil
	case 109: // set + wait nozzle temp
		return c.compileSub(record.OpWaitNozzle, cmd, 0), true, nil
	case 106: // cooler speed
		return c.compileSub(record.OpSetCooler, cmd, 0), true, nil
	case 107: // cooler off
		return record.Record{Opcode: record.OpSetCooler, Family: record.FamilySub}, true, nil
	case 140: // set bed temp
		return c.compileSub(record.OpSetBedTemp, cmd, 0), true, nil
	case 190: // set + wait bed temp
		return c.compileSub(record.OpWaitBed, cmd, 0), true, nil
	}
	// Unrecognized M numbers are silently dropped (spec.md §4.2).
	return record.Record{}, false, nil
}

func (c *Compiler) compileSub(op record.Opcode, cmd Command, def int16) record.Record {
	s := int16(cmd.Get('S', float64(def)))
	return record.Record{
		Opcode: op,
		Family: record.FamilySub,
		Sub: record.Sub{
			S: s,
			I: int16(cmd.Get('I', 0)),
			R: int16(cmd.Get('R', 0)),
			P: int16(cmd.Get('P', 0)),
		},
	}
}

func (c *Compiler) clampedFetch(requested uint32) uint32 {
	if c.MaxFetch != 0 && requested > c.MaxFetch {
		return c.MaxFetch
	}
	return requested
}

func (c *Compiler) compileMove(cmd Command) record.Record {
	targetX, targetY, targetZ := c.curX, c.curY, c.curZ
	targetE := c.curE

	if cmd.Has('X') {
		targetX = c.resolveAxis(c.curX, cmd.Get('X', 0), c.scale.X, c.absoluteMotion)
	}
	if cmd.Has('Y') {
		targetY = c.resolveAxis(c.curY, cmd.Get('Y', 0), c.scale.Y, c.absoluteMotion)
	}
	if cmd.Has('Z') {
		targetZ = c.resolveAxis(c.curZ, cmd.Get('Z', 0), c.scale.Z, c.absoluteMotion)
	}
	if cmd.Has('E') {
		targetE = c.resolveAxis(c.curE, cmd.Get('E', 0), c.scale.E, c.absoluteExtrusion)
	}

	fetch := c.clampedFetch(uint32(cmd.Get('F', 0)))

	rec := record.Record{
		Opcode: record.OpMove,
		Family: record.FamilyMotion,
		Motion: record.Motion{
			X:     targetX - c.curX,
			Y:     targetY - c.curY,
			Z:     targetZ - c.curZ,
			E:     targetE - c.curE,
			Fetch: fetch,
		},
	}

	c.curX, c.curY, c.curZ, c.curE = targetX, targetY, targetZ, targetE
	return rec
}

// compileHome always resolves in absolute motion + relative extrusion,
// regardless of the live modal flags (spec.md §4.2). Axes not named in
// the command are left unmoved; when no axis is named, all of X/Y/Z
// home to zero.
func (c *Compiler) compileHome(cmd Command) record.Record {
	homeAll := !cmd.Has('X') && !cmd.Has('Y') && !cmd.Has('Z')

	targetX, targetY, targetZ := c.curX, c.curY, c.curZ
	if homeAll || cmd.Has('X') {
		targetX = 0
	}
	if homeAll || cmd.Has('Y') {
		targetY = 0
	}
	if homeAll || cmd.Has('Z') {
		targetZ = 0
	}

	rec := record.Record{
		Opcode: record.OpHome,
		Family: record.FamilyMotion,
		Motion: record.Motion{
			X:     targetX - c.curX,
			Y:     targetY - c.curY,
			Z:     targetZ - c.curZ,
			E:     0,
			Fetch: HomingFetch,
		},
	}

	c.curX, c.curY, c.curZ = targetX, targetY, targetZ
	return rec
}

func (c *Compiler) compileSetPosition(cmd Command) record.Record {
	if cmd.Has('X') {
		c.curX = mmToSteps(cmd.Get('X', 0), c.scale.X)
	}
	if cmd.Has('Y') {
		c.curY = mmToSteps(cmd.Get('Y', 0), c.scale.Y)
	}
	if cmd.Has('Z') {
		c.curZ = mmToSteps(cmd.Get('Z', 0), c.scale.Z)
	}
	if cmd.Has('E') {
		c.curE = mmToSteps(cmd.Get('E', 0), c.scale.E)
	}
	return record.Record{
		Opcode: record.OpSetPosition,
		Family: record.FamilyMotion,
		Motion: record.Motion{X: c.curX, Y: c.curY, Z: c.curZ, E: c.curE},
	}
}

// snapshot emits a position-only record (G60/G99) carrying the current
// absolute position so the executor can persist it.
func (c *Compiler) snapshot(op record.Opcode) record.Record {
	return record.Record{
		Opcode: op,
		Family: record.FamilyMotion,
		Motion: record.Motion{X: c.curX, Y: c.curY, Z: c.curZ, E: c.curE},
	}
}

// resolveAxis applies the move's modal mode to one axis: absolute
// mode replaces the position, relative mode adds to it.
func (c *Compiler) resolveAxis(current int32, valueMM float64, scale int32, absolute bool) int32 {
	if absolute {
		return mmToSteps(valueMM, scale)
	}
	return current + mmToSteps(valueMM, scale)
}

// mmToSteps converts millimeters to an integer step count, rounded
// toward zero (spec.md §4.1).
func mmToSteps(mm float64, stepsPerMM int32) int32 {
	return int32(mm * float64(stepsPerMM))
}
