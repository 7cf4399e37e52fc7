//go:build rp2040 || rp2350

package rp2040

import (
	"sync"

	"machine"

	"printerfirm/ports"
)

// Adc samples thermistor channels through TinyGo's machine.ADC, the
// same lazy per-channel configuration adc.go's RpAdcDriver.ReadRaw
// performs against its channel map, narrowed here to the
// ports.ADC.Sample(channel) shape the executor calls once every
// thermal.ServiceTicks ticks.
// A channel's readiness is always true: machine.ADC.Get blocks for
// the single conversion it performs, unlike the teacher's free-running
// continuous sampling.
type Adc struct {
	mu       sync.Mutex
	channels map[uint32]machine.ADC
}

// NewAdc initializes the ADC peripheral and returns an empty channel
// cache.
func NewAdc() *Adc {
	machine.InitADC()
	return &Adc{channels: make(map[uint32]machine.ADC)}
}

func (a *Adc) Sample(channel uint32) (uint16, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	adc, ok := a.channels[channel]
	if !ok {
		adc = machine.ADC{Pin: machine.Pin(channel)}
		adc.Configure(machine.ADCConfig{})
		a.channels[channel] = adc
	}
	return adc.Get(), true
}
