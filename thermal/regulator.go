// Package thermal implements the adaptive bang-bang temperature
// regulator of spec.md §4.9: a 10-tick PWM duty cycle whose heat/cool
// rungs self-tune around a setpoint as the regulator observes whether
// it is gaining or losing ground.
//
// The bucketed-sampling shape (accumulate N raw ADC readings, average,
// then make one control decision) is grounded on core/adc.go's
// AnalogIn sampling/oversampling state machine; the control law itself
// has no teacher analogue (Klipper's PID loop is a different
// algorithm) and is implemented directly from spec.md §4.9's update
// rule, in the same small-struct/explicit-fields style core/adc.go
// uses for AnalogIn.
package thermal

import "printerfirm/pulse"

// BucketSize is how many consecutive ADC readings are averaged before
// one regulator decision (spec.md §4.9, "bucket").
const BucketSize = 15

// ServiceTicks is how many 10 kHz executor ticks separate regulator
// buckets (spec.md §4.5: "services thermal regulation once per 1000
// ticks").
const ServiceTicks = 1000

// PWMWindow is the heater pin's duty-cycle window in regulator
// decisions (spec.md §4.9: "a 10-tick PWM window").
const PWMWindow = 10

// Polarity selects which pin level corresponds to "heater on", so one
// controller shape serves opposite-polarity solid-state relays
// (spec.md §4.9: "nozzle heats on high, bed on low").
type Polarity bool

const (
	ActiveHigh Polarity = true
	ActiveLow  Polarity = false
)

// Regulator is one adaptive bang-bang thermal loop.
type Regulator struct {
	polarity Polarity
	gen      *pulse.Generator

	targetVoltage  int32
	initialVoltage int32
	currentVoltage int32

	heatPower    uint32 // 0..10
	heatPowerMin uint32
	coolPower    uint32 // 0..10
	coolPowerMax uint32

	heating           bool
	temperatureReached bool
	heatProbeIndex    int

	bucketSum   int64
	bucketCount int
	ticksSinceService uint32
}

// New creates a Regulator at zero setpoint, wide-open limits.
func New(polarity Polarity) *Regulator {
	return &Regulator{
		polarity:     polarity,
		gen:          pulse.New(pulse.TrailingBias),
		heatPower:    PWMWindow,
		coolPower:    PWMWindow,
		heatPowerMin: 0,
		coolPowerMax: PWMWindow,
	}
}

// SetTarget arms a new setpoint, capturing the current voltage as
// initial_voltage and resetting the reached latch (spec.md §4.9).
func (r *Regulator) SetTarget(target int32) {
	r.targetVoltage = target
	r.initialVoltage = r.currentVoltage
	r.temperatureReached = (r.currentVoltage-r.targetVoltage)*(r.initialVoltage-r.targetVoltage) <= 0
}

// Reached reports whether the setpoint has ever been crossed since the
// last SetTarget call — the condition the executor's wait states poll
// (spec.md §3: "cleared only when the regulator reports the setpoint
// reached").
func (r *Regulator) Reached() bool {
	return r.temperatureReached
}

// CurrentVoltage reports the last committed bucket average.
func (r *Regulator) CurrentVoltage() int32 {
	return r.currentVoltage
}

// Sample feeds one raw ADC reading into the current bucket. Call once
// per ServiceTicks window; readings are averaged over BucketSize
// samples before a control decision is made.
func (r *Regulator) Sample(reading int32) {
	r.bucketSum += int64(reading)
	r.bucketCount++
	if r.bucketCount < BucketSize {
		return
	}
	avg := int32(r.bucketSum / int64(r.bucketCount))
	r.bucketSum, r.bucketCount = 0, 0
	r.update(avg)
}

// update applies spec.md §4.9's per-bucket control rule.
func (r *Regulator) update(avg int32) {
	delta := avg - r.currentVoltage
	r.currentVoltage = avg

	if (r.currentVoltage-r.targetVoltage)*(r.initialVoltage-r.targetVoltage) <= 0 {
		r.temperatureReached = true
	}

	if r.currentVoltage < r.targetVoltage {
		r.mustHeat(delta)
	} else {
		r.mustCool(delta)
	}

	if r.heatProbeIndex > 10 {
		r.reset()
	}

	r.applyPower()
}

func (r *Regulator) mustHeat(delta int32) {
	if r.heating && delta <= 0 && r.heatPower == r.heatPowerMin {
		r.heatProbeIndex++
		if r.heatProbeIndex >= 2 {
			r.heatPowerMin = clampRung(r.heatPowerMin + 1)
			r.heatPower = r.heatPowerMin
			r.heatProbeIndex = 0
		}
	}
	if !r.heating && r.temperatureReached && r.coolPower == r.coolPowerMax && r.coolPower < r.heatPower {
		r.coolPowerMax = clampRung(r.coolPowerMax + 1)
		r.coolPower = r.coolPowerMax
	}
	r.heating = true
}

func (r *Regulator) mustCool(delta int32) {
	if !r.heating && delta >= 0 && r.coolPower == r.coolPowerMax {
		r.heatProbeIndex++
		if r.heatProbeIndex >= 2 {
			r.coolPowerMax = clampRung(r.coolPowerMax - 1)
			r.coolPower = r.coolPowerMax
			r.heatProbeIndex = 0
		}
	}
	if r.heating && r.temperatureReached && r.heatPower == r.heatPowerMin && r.heatPower > r.coolPower {
		r.heatPowerMin = clampRung(r.heatPowerMin - 1)
		r.heatPower = r.heatPowerMin
	}
	r.heating = false
}

// reset widens the controller back to full-swing limits after a long
// stretch of no progress (spec.md §4.9 point 5).
func (r *Regulator) reset() {
	r.heatPowerMin = 0
	r.coolPowerMax = PWMWindow
	r.heatPower = PWMWindow
	r.coolPower = PWMWindow
	r.heatProbeIndex = 0
}

func (r *Regulator) applyPower() {
	var power uint32
	if r.heating {
		power = r.heatPower
	} else {
		power = r.coolPower
	}
	r.gen.Configure(PWMWindow, power)
}

// Tick must be called once per executor tick. It returns the heater
// pin's commanded level, accounting for the configured polarity.
func (r *Regulator) Tick() bool {
	r.ticksSinceService++
	pulseOn := r.gen.Tick()
	if r.polarity == ActiveHigh {
		return pulseOn
	}
	return !pulseOn
}

func clampRung(v uint32) uint32 {
	if v > PWMWindow {
		return PWMWindow
	}
	return v
}
