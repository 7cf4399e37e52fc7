//go:build rp2040

package pio

import (
	"machine"

	"printerfirm/ports"
)

// Gpio implements ports.Gpio over a fixed set of PIO-backed axes, one
// per step/dir pin pair registered with Register. Writes to any other
// pin (heaters, cooler) fall through to plain machine.Pin output,
// since only the four stepper axes benefit from PIO offload.
type Gpio struct {
	axes    map[ports.Pin]*Axis // keyed by step pin
	dirToAx map[ports.Pin]*Axis // keyed by dir pin
	plain   map[ports.Pin]bool
}

// NewGpio creates a Gpio with no axes registered.
func NewGpio() *Gpio {
	return &Gpio{
		axes:    make(map[ports.Pin]*Axis),
		dirToAx: make(map[ports.Pin]*Axis),
		plain:   make(map[ports.Pin]bool),
	}
}

// Register claims a PIO state machine for the step/dir pair and
// routes subsequent writes to those two pins through it.
func (g *Gpio) Register(pioNum, smNum uint8, stepPin, dirPin ports.Pin) error {
	axis, err := NewAxis(pioNum, smNum, machine.Pin(stepPin), machine.Pin(dirPin))
	if err != nil {
		return err
	}
	g.axes[stepPin] = axis
	g.dirToAx[dirPin] = axis
	return nil
}

func (g *Gpio) Write(pin ports.Pin, level bool) error {
	if axis, ok := g.axes[pin]; ok {
		if level {
			axis.Step()
		}
		return nil
	}
	if axis, ok := g.dirToAx[pin]; ok {
		axis.SetDirection(level)
		return nil
	}

	p := machine.Pin(pin)
	if !g.plain[pin] {
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
		g.plain[pin] = true
	}
	p.Set(level)
	return nil
}

func (g *Gpio) Read(pin ports.Pin) (bool, error) {
	return machine.Pin(pin).Get(), nil
}
