// Package accel implements the trapezoidal acceleration scheduler of
// spec.md §4.8: a rung-based velocity clamp shared across an entire
// continuous region (spec.md §3), rather than per-segment, so a chain
// of collinear moves ramps up once at the region's start and down once
// at its end instead of re-accelerating at every segment boundary.
//
// There is no direct teacher analogue — amken3d-gopper's
// standalone/planner/planner.go computes a trapezoid per move, not per
// region, and core/stepper.go's CurrentAdd field only ever adjusts a
// single queue_step's interval. The rung-stepping shape (a discrete
// velocity level held for a fixed tick window, gated by an embedded
// pulse generator rather than by reconfiguring the motor generators'
// periods) is new code written directly from spec.md §4.8's algorithm,
// in planner.go's small-struct, explicit-field style.
package accel

import "printerfirm/pulse"

// Accel is the constant acceleration magnitude shared by every region
// (spec.md §4.8: "a = 120 mm/s²").
const Accel float64 = 120.0

// MinFetch is the velocity floor below which no ramp is needed
// (spec.md §4.8: "F_min = 4500 mm/min").
const MinFetch float64 = 4500.0

// RungTicks is how many ticks one rung is held before advancing
// (spec.md §4.8: "SEG = 50 ticks per rung").
const RungTicks uint32 = 50

// TicksPerSec is the executor's tick rate (spec.md §2).
const TicksPerSec = 10000

// Scheduler holds the ramp state for one continuous region. A new
// Scheduler (or a fresh StartRegion call) is required at the first
// move of each region.
type Scheduler struct {
	gen *pulse.Generator

	remaining uint32 // subsequent_region_length: ticks left in the region, decrements every tick
	distance  uint32 // ticks consumed since region start; frozen once the ramp flips

	rung     int64 // current rung index
	nRungs   int64 // target rung count
	rungIncr int64 // +1 while ramping up, -1 while ramping down

	accTick      uint32 // ticks elapsed within the current rung
	distanceIncr uint32 // 0 once frozen at the ramp-down mirror point
	flipped      bool
}

// New creates a scheduler with its own gating pulse generator.
func New() *Scheduler {
	return &Scheduler{gen: pulse.New(pulse.TrailingBias), distanceIncr: 1}
}

// tBase is the acceleration time, in ticks, to ramp from rest up to
// MinFetch — the "free" portion of the ramp a move faster than
// MinFetch starts past (spec.md §4.8: "region: current rung index,
// initial 1 (or the rung corresponding to F_min)").
var tBase = uint32(TicksPerSec * (MinFetch / 60.0) / Accel)

// baseRung is tBase expressed in rungs.
var baseRung = int64(tBase / RungTicks)

// StartRegion arms the scheduler for a region whose aggregate duration
// (the base record's sequence_time) is regionLengthTicks, ramping
// toward fetch mm/min (spec.md §4.8). A fetch at or below MinFetch
// ramps from a full stop (rung 1); a fetch above MinFetch starts from
// the rung already corresponding to MinFetch, since that portion of
// the ramp needs no clamping of its own.
func (s *Scheduler) StartRegion(regionLengthTicks uint32, fetchMMPerMin float64) {
	var dv float64
	var ta uint32
	var nRungs int64
	var startRung int64

	if fetchMMPerMin > MinFetch {
		dv = (fetchMMPerMin - MinFetch) / 60.0
		ta = uint32(float64(TicksPerSec) * dv / Accel)
		nRungs = int64((tBase + ta) / RungTicks)
		startRung = baseRung
	} else {
		dv = fetchMMPerMin / 60.0
		ta = uint32(float64(TicksPerSec) * dv / Accel)
		nRungs = int64(ta / RungTicks)
		startRung = 1
	}
	if nRungs < 1 {
		nRungs = 1
	}
	if startRung < 1 {
		startRung = 1
	}

	s.remaining = regionLengthTicks
	s.distance = 0
	s.rung = startRung
	s.nRungs = nRungs
	s.rungIncr = 1
	s.accTick = 0
	s.distanceIncr = 1
	s.flipped = false

	s.gen.Configure(RungTicks, uint32(rungPower(s.rung, RungTicks, s.nRungs)))
}

// Active reports whether the scheduler is still clamping velocity this
// tick (ramping up, or braking because the remaining region length has
// dropped below the ticks already consumed). When false the caller
// should run every axis pulse generator at full rate — cruise speed.
func (s *Scheduler) Active() bool {
	ramping := s.rung < s.nRungs
	braking := int64(s.remaining) <= int64(s.distance)-1
	return ramping || braking
}

// Tick advances the scheduler by one executor tick and reports whether
// this tick should carry motor pulse processing. Cruise ticks (Active
// == false just before this call) always report true without
// consuming the gating generator.
func (s *Scheduler) Tick() bool {
	gate := true
	if s.Active() {
		if !s.flipped && s.remaining < s.distance {
			s.rungIncr = -1
			s.accTick = RungTicks - s.accTick
			s.distanceIncr = 0
			s.flipped = true
		}

		if s.accTick == 0 {
			s.rung += s.rungIncr
			if s.rung < 1 {
				s.rung = 1
			}
			s.gen.Configure(RungTicks, uint32(rungPower(s.rung, RungTicks, s.nRungs)))
		}
		gate = s.gen.Tick()

		s.accTick++
		if s.accTick >= RungTicks {
			s.accTick = 0
		}
	}

	s.distance += s.distanceIncr
	if s.remaining > 0 {
		s.remaining--
	}
	return gate
}

// rungPower implements spec.md §4.8 point 3: power = max(1, region *
// SEG / N_rungs).
func rungPower(rung int64, seg uint32, nRungs int64) int64 {
	p := rung * int64(seg) / nRungs
	if p < 1 {
		return 1
	}
	return p
}
