//go:build rp2040 || rp2350

// Package rp2040 adapts TinyGo's RP2040/RP2350 board support package to
// this firmware's ports traits: real step/direction/heater/cooler GPIO,
// thermistor ADC sampling, an SD-card-backed BlockStore, and a
// hardware-timer Ticker. It replaces the teacher's Klipper-protocol
// register/command glue (targets/rp2040/main.go and the rest of its
// command drivers) with adapters against the one set of interfaces
// this firmware's core ever calls through.
package rp2040

import (
	"sync"

	"machine"

	"printerfirm/ports"
)

// Gpio drives digital pins directly through machine.Pin, lazily
// configuring each pin as an output on first write (steppers, heaters
// and the cooler only ever write). The configured-pin cache mirrors
// the slice/channel tracking maps pwm.go's RP2040PWMDriver keeps to
// avoid re-touching already-configured hardware on every call.
type Gpio struct {
	mu      sync.Mutex
	outputs map[ports.Pin]bool
	inputs  map[ports.Pin]bool
}

// NewGpio creates a Gpio with no pins configured yet.
func NewGpio() *Gpio {
	return &Gpio{outputs: make(map[ports.Pin]bool), inputs: make(map[ports.Pin]bool)}
}

func (g *Gpio) Write(pin ports.Pin, level bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	p := machine.Pin(pin)
	if !g.outputs[pin] {
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
		g.outputs[pin] = true
	}
	p.Set(level)
	return nil
}

func (g *Gpio) Read(pin ports.Pin) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p := machine.Pin(pin)
	if !g.inputs[pin] {
		p.Configure(machine.PinConfig{Mode: machine.PinInput})
		g.inputs[pin] = true
	}
	return p.Get(), nil
}
