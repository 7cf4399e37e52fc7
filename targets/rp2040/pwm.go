//go:build rp2040 || rp2350

package rp2040

import (
	"sync"

	"machine"

	"printerfirm/ports"
)

// pwmPeripheral abstracts over TinyGo's unexported *pwmGroup type, the
// same abstraction pwm.go's RP2040PWMDriver uses to talk to
// machine.PWM0..PWM7 through an interface instead of the concrete
// unexported type.
type pwmPeripheral interface {
	Configure(config machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Top() uint32
	Set(channel uint8, value uint32)
}

func pwmSlice(n uint8) pwmPeripheral {
	switch n {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	default:
		return machine.PWM7
	}
}

// HardwareGpio is an alternate Gpio backed by the RP2040's hardware
// PWM slices instead of raw GPIO writes, for heater and cooler pins
// where switching through the PWM block is preferable to bit-banging.
// thermal.Regulator and pulse.Cooler only ever decide a boolean level
// per interval (spec.md's bang-bang and software-PWM outputs are both
// already time-distributed in software), so Write here just drives
// the slice to 0% or 100% duty rather than exposing a separate
// duty-cycle API; the pin's physical PWM capability is reused, its
// graduated output range is not.
type HardwareGpio struct {
	mu     sync.Mutex
	slices map[uint8]pwmPeripheral
	chans  map[ports.Pin]uint8
}

// NewHardwareGpio creates a HardwareGpio with no slices configured yet.
func NewHardwareGpio() *HardwareGpio {
	return &HardwareGpio{slices: make(map[uint8]pwmPeripheral), chans: make(map[ports.Pin]uint8)}
}

func (h *HardwareGpio) sliceFor(pin ports.Pin) uint8 {
	return uint8((uint32(pin) >> 1) & 0x7)
}

func (h *HardwareGpio) Write(pin ports.Pin, level bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	sliceNum := h.sliceFor(pin)
	slice, ok := h.slices[sliceNum]
	if !ok {
		slice = pwmSlice(sliceNum)
		if err := slice.Configure(machine.PWMConfig{Period: 1_000_000}); err != nil {
			return err
		}
		h.slices[sliceNum] = slice
	}

	channel, ok := h.chans[pin]
	if !ok {
		ch, err := slice.Channel(machine.Pin(pin))
		if err != nil {
			return err
		}
		h.chans[pin] = ch
		channel = ch
	}

	if level {
		slice.Set(channel, slice.Top())
	} else {
		slice.Set(channel, 0)
	}
	return nil
}

func (h *HardwareGpio) Read(pin ports.Pin) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return machine.Pin(pin).Get(), nil
}
