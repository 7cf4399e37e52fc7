// Package pulse implements the evenly-distributed pulse generator of
// spec.md §4.7 (motor step pulses) and §4.10 (cooler PWM, the same
// algorithm at a coarser period and service rate).
//
// The Bresenham-style accumulator is grounded on
// standalone/stepgen/stepper.go's stepHandler, the teacher's own
// even-distribution step timer, generalized from its fixed internal
// period to the caller-supplied (period, power) program spec.md §4.7
// requires; the toggling/cycle-time state-machine shape is the one
// core/pwm.go's HardwarePWM uses for duty-cycle bookkeeping. The
// per-tick decision is computed from the closed-form prefix count that
// spec.md §4.7's stateful desired/signal_tick formula reduces to
// (floor(k·N/T) for the trailing bias, 1+floor((k−1)·N/T) for the
// leading bias) rather than from an incremental running sum, so there
// is no drift to reconcile and the invariant holds by construction.
package pulse

// EdgeBias selects which end of the period a generator favors when
// distributing pulses.
type EdgeBias uint32

const (
	// TrailingBias avoids a pulse on the first tick of a new program
	// (used by motors, so a new segment doesn't double-step the last
	// pulse of the previous one).
	TrailingBias EdgeBias = 0
	// LeadingBias front-loads the first pulse (used by the extruder,
	// so filament flow begins immediately).
	LeadingBias EdgeBias = 1
)

// Generator emits exactly |power| pulses evenly spread across `period`
// Tick calls, resetting every period ticks (spec.md §4.7).
type Generator struct {
	bias EdgeBias

	period uint32
	power  uint32

	tick      uint32
	lastCount uint32
}

// New creates a Generator with a fixed edge bias. Configure must be
// called before the first Tick.
func New(bias EdgeBias) *Generator {
	return &Generator{bias: bias}
}

// Configure arms a new program: period ticks, power pulses distributed
// across them. It resets the internal counters, as a new move or rung
// always starts its own distribution window.
func (g *Generator) Configure(period, power uint32) {
	g.period = period
	g.power = power
	g.tick = 0
	g.lastCount = 0
}

// Power reports the generator's currently configured pulse count.
func (g *Generator) Power() uint32 { return g.power }

// Tick advances one tick and reports whether a pulse (rising edge then
// falling edge within this same call) should be emitted.
func (g *Generator) Tick() bool {
	if g.period == 0 {
		return false
	}
	g.tick++

	count := g.prefixCount(g.tick)
	pulse := count > g.lastCount
	g.lastCount = count

	if g.tick == g.period {
		g.tick = 0
		g.lastCount = 0
	}
	return pulse
}

// prefixCount returns how many pulses should have been emitted across
// the first k ticks of the current period, per spec.md §4.7's
// desired = edge_bias·power + (tick−edge_bias)·power/period formula:
// trailing (edge_bias=0) reduces to floor(k·N/T); leading (edge_bias=1)
// reduces to 1+floor((k−1)·N/T), the power-upfront offset that lets
// the extruder's first tick already carry a pulse. A zero-power
// program never pulses regardless of bias, which the leading formula's
// constant "1" term would otherwise violate.
func (g *Generator) prefixCount(k uint32) uint32 {
	if g.power == 0 {
		return 0
	}
	power := uint64(g.power)
	period := uint64(g.period)

	if g.bias == LeadingBias {
		return uint32(1 + (uint64(k-1)*power)/period)
	}
	return uint32((uint64(k) * power) / period)
}

const (
	// CoolerPeriod is the cooler PWM's software period, matching the
	// standard G-code cooler speed range 0..255 (spec.md §4.10).
	CoolerPeriod = 256
	// CoolerServiceTicks is how many 10 kHz executor ticks separate
	// cooler pulse decisions (a 100 Hz service rate).
	CoolerServiceTicks = 100
)

// Cooler wraps a Generator configured for the cooler's period and
// drives it only once every CoolerServiceTicks executor ticks.
type Cooler struct {
	gen   *Generator
	speed uint32 // 0..255, last commanded S value
	since uint32 // ticks since the last service decision
	level bool   // last decision, held between services
}

// NewCooler creates a Cooler generator at zero speed.
func NewCooler() *Cooler {
	return &Cooler{gen: New(TrailingBias)}
}

// SetSpeed sets the commanded cooler duty (0..255); M107 passes 0.
func (c *Cooler) SetSpeed(speed uint16) {
	c.speed = uint32(speed)
	c.gen.Configure(CoolerPeriod, c.speed)
}

// Tick must be called once per executor tick. It returns the cooler
// pin's level for this tick, updating it only every CoolerServiceTicks
// ticks and holding it steady in between.
func (c *Cooler) Tick() bool {
	if c.since == 0 {
		c.level = c.gen.Tick()
	}
	c.since++
	if c.since >= CoolerServiceTicks {
		c.since = 0
	}
	return c.level
}
