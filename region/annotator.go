// Package region implements the continuous-region annotator of
// spec.md §4.3: it fills in a freshly compiled record's segment_time
// and decides whether the record continues the current region or
// starts a new one. It has no notion of storage pages — that
// bookkeeping (which page holds the base record, when to lock it)
// belongs to the cache writer, which is the only component that knows
// about pages.
//
// The per-segment timing math is new relative to the teacher (nothing
// in amken3d-gopper computes acceleration-aware tick counts at compile
// time), but the region-aggregation *shape* — fold per-item costs into
// a running total carried on the first item of a group — is modelled
// on standalone/planner/planner.go's calculateTrapezoid, which is the
// teacher's only example of turning a move's raw fields into derived
// timing fields before execution.
package region

import (
	"math"

	"printerfirm/gcode"
	"printerfirm/record"
)

// cos30 is cos(30°), the continuity threshold from spec.md §3.
const cos30 = 0.8660254037844387

// TicksPerSec is the executor's tick rate (spec.md §2).
const TicksPerSec = 10000

// Annotator tracks the state needed to detect region boundaries and
// compute each segment's tick duration.
type Annotator struct {
	scale gcode.AxisScale

	active   bool // true while tracking a region
	fetch    uint32
	opcode   record.Opcode
	lastX    int32
	lastY    int32
	lastZ    int32
}

// NewAnnotator creates an annotator for the given axis scale.
func NewAnnotator(scale gcode.AxisScale) *Annotator {
	return &Annotator{scale: scale}
}

// Observe fills in rec.Motion.SegmentTime and rec.Motion.SequenceTime
// for a motion record that represents a physical move (move or home).
// It returns true when rec starts a new region (the caller must then
// treat rec as the new locked base), false when rec continues the
// region already in progress (the caller must add rec.Motion.SegmentTime
// onto the existing base's SequenceTime and leave rec's SequenceTime at
// zero, which Observe already did).
func (a *Annotator) Observe(rec *record.Record) bool {
	dx, dy, dz, de := rec.Motion.X, rec.Motion.Y, rec.Motion.Z, rec.Motion.E
	rec.Motion.SegmentTime = a.segmentTime(dx, dy, dz, de, rec.Motion.Fetch)

	continuous := a.active &&
		rec.Motion.Fetch == a.fetch &&
		rec.Opcode == a.opcode &&
		a.angleContinuous(dx, dy, dz)

	if continuous {
		rec.Motion.SequenceTime = 0
	} else {
		rec.Motion.SequenceTime = rec.Motion.SegmentTime
	}

	a.active = true
	a.fetch = rec.Motion.Fetch
	a.opcode = rec.Opcode
	a.lastX, a.lastY, a.lastZ = dx, dy, dz

	return !continuous
}

// Terminate ends region tracking for a non-move command (G92, G60,
// G99, or any M-command): "locked_page ← None, last_segment ← 0"
// (spec.md §4.3). The caller is responsible for unlocking its page.
func (a *Annotator) Terminate() {
	a.active = false
	a.fetch = 0
	a.opcode = 0
	a.lastX, a.lastY, a.lastZ = 0, 0, 0
}

func (a *Annotator) angleContinuous(dx, dy, dz int32) bool {
	if a.lastX == 0 && a.lastY == 0 && a.lastZ == 0 {
		return false
	}
	dot := int64(a.lastX)*int64(dx) + int64(a.lastY)*int64(dy) + int64(a.lastZ)*int64(dz)
	magLast2 := int64(a.lastX)*int64(a.lastX) + int64(a.lastY)*int64(a.lastY) + int64(a.lastZ)*int64(a.lastZ)
	magSeg2 := int64(dx)*int64(dx) + int64(dy)*int64(dy) + int64(dz)*int64(dz)
	if magLast2 == 0 || magSeg2 == 0 {
		return false
	}
	cos := float64(dot) / math.Sqrt(float64(magLast2)*float64(magSeg2))
	return cos >= cos30
}

// segmentTime implements spec.md §4.6: for each axis, the greater of
// the raw step count and the time the requested velocity demands; the
// segment's time is the maximum across axes, with XY combined via its
// diagonal length.
func (a *Annotator) segmentTime(dx, dy, dz, de int32, fetchMMPerMin uint32) uint32 {
	return SegmentTicks(a.scale, dx, dy, dz, de, fetchMMPerMin)
}

// SegmentTicks computes one segment's tick duration per spec.md §4.6,
// independent of any in-progress region tracking. The compiler path
// reaches this through Annotator.Observe; the executor calls it
// directly to time the synthesized resume move (spec.md §4.5), which
// never passes through compilation.
func SegmentTicks(scale gcode.AxisScale, dx, dy, dz, de int32, fetchMMPerMin uint32) uint32 {
	xySteps := int64(math.Round(math.Sqrt(float64(dx)*float64(dx) + float64(dy)*float64(dy))))
	zSteps := int64(abs32(dz))
	eSteps := int64(abs32(de))

	xyTicks := axisTicks(xySteps, scale.X, fetchMMPerMin)
	zTicks := axisTicks(zSteps, scale.Z, fetchMMPerMin)
	eTicks := axisTicks(eSteps, scale.E, fetchMMPerMin)

	return max3(xyTicks, zTicks, eTicks)
}

func axisTicks(steps int64, stepsPerMM int32, fetch uint32) uint32 {
	if steps == 0 {
		return 0
	}
	ticksFromSteps := steps
	var ticksFromVelocity int64
	if stepsPerMM > 0 && fetch > 0 {
		ticksFromVelocity = steps * int64(TicksPerSec) * 60 / (int64(stepsPerMM) * int64(fetch))
	}
	if ticksFromVelocity > ticksFromSteps {
		return uint32(ticksFromVelocity)
	}
	return uint32(ticksFromSteps)
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

func max3(a, b, c uint32) uint32 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}
