//go:build rp2040

// Package pio offers an optional PIO-offloaded step pulse backend for
// targets/rp2040, adapted from the teacher's own stepper_pio.go (its
// github.com/tinygo-org/pio-based backend, not the raw-register one
// targets/rp2040 carried in parallel). The software pulse.Generator
// in executor remains the pulse source of record (spec.md §4.7); this
// package only changes how a single step pulse physically reaches the
// pin once pulse.Generator has already decided to emit one, trading a
// GPIO bit-bang for a state machine that holds the pulse width with
// hardware timing instead of CPU cycles.
package pio

import (
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

func buildStepperProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Pull(false, true).Encode(),          // 0: pull block
		asm.Out(rp2pio.OutDestX, 16).Encode(),   // 1: out x, 16 (pulse count - 1)
		asm.Out(rp2pio.OutDestY, 8).Encode(),    // 2: out y, 8 (delay cycles)
		asm.Out(rp2pio.OutDestPins, 1).Encode(), // 3: out pins, 1 (direction)
		// step_loop:
		asm.Set(rp2pio.SetDestPins, 1).Delay(7).Encode(), // 4: set pins, 1 [7]
		asm.Set(rp2pio.SetDestPins, 0).Encode(),          // 5: set pins, 0
		// delay_loop:
		asm.Jmp(6, rp2pio.JmpYNZeroDec).Encode(), // 6: jmp y--, 6
		asm.Jmp(4, rp2pio.JmpXNZeroDec).Encode(), // 7: jmp x--, 4
		// .wrap
	}
}

const stepperOrigin = 0

// Axis drives one stepper's step/dir pair through a claimed PIO state
// machine, running buildStepperProgram autonomously so a single
// requested pulse never blocks on software timing.
type Axis struct {
	pio       *rp2pio.PIO
	sm        rp2pio.StateMachine
	stepPin   machine.Pin
	dirPin    machine.Pin
	direction bool
}

// NewAxis claims state machine smNum on PIO block pioNum (0 or 1) for
// stepPin/dirPin.
func NewAxis(pioNum, smNum uint8, stepPin, dirPin machine.Pin) (*Axis, error) {
	pioHW := rp2pio.PIO0
	if pioNum != 0 {
		pioHW = rp2pio.PIO1
	}
	a := &Axis{pio: pioHW, sm: pioHW.StateMachine(smNum), stepPin: stepPin, dirPin: dirPin}

	a.sm.TryClaim()

	program := buildStepperProgram()
	offset, err := a.pio.AddProgram(program, stepperOrigin)
	if err != nil {
		return nil, err
	}

	a.stepPin.Configure(machine.PinConfig{Mode: a.pio.PinMode()})
	a.dirPin.Configure(machine.PinConfig{Mode: a.pio.PinMode()})

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetSetPins(a.stepPin, 1)
	cfg.SetOutPins(a.dirPin, 1)
	cfg.SetOutShift(true, false, 32)
	cfg.SetWrap(offset+uint8(len(program))-1, offset)
	cfg.SetClkDivIntFrac(1000, 0)

	a.sm.Init(offset, cfg)
	a.sm.SetPindirsConsecutive(a.stepPin, 1, true)
	a.sm.SetPindirsConsecutive(a.dirPin, 1, true)
	a.sm.SetPinsConsecutive(a.stepPin, 1, false)
	a.sm.SetPinsConsecutive(a.dirPin, 1, false)
	a.sm.SetEnabled(true)

	return a, nil
}

// SetDirection latches the direction used by the next Step.
func (a *Axis) SetDirection(dir bool) {
	a.direction = dir
}

// Step queues exactly one pulse, the unit pulse.Generator's Tick
// already decided to emit.
func (a *Axis) Step() {
	cmd := uint32(0) | (1 << 16)
	if a.direction {
		cmd |= 1 << 24
	}
	for a.sm.IsTxFIFOFull() {
	}
	a.sm.TxPut(cmd)
}

// Stop halts and drains the state machine's FIFOs.
func (a *Axis) Stop() {
	a.sm.SetEnabled(false)
	a.sm.ClearFIFOs()
	a.sm.Restart()
	a.sm.SetEnabled(true)
}
