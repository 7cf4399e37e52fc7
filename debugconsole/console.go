// Package debugconsole implements the firmware's post-mortem event
// ring and its live serial drain, adapted from core/debug.go's
// DebugWriter/timing-ring pattern to this firmware's own dispatch
// points (region boundaries, preload stalls, thermal latch events,
// synthesized resume moves) and to events (§9's "Global state" design
// note). github.com/tarm/serial, the same dependency
// host/serial/serial_native.go wires for the MCU/host link, is reused
// here for the debug console's own transport.
package debugconsole

import (
	"fmt"
	"io"

	"github.com/tarm/serial"
)

// EventType identifies one kind of recorded occurrence.
type EventType uint8

const (
	EvtNone EventType = iota
	EvtRegionStart
	EvtRegionContinue
	EvtPreloadStall
	EvtThermalReached
	EvtResumeSynthesized
)

func (e EventType) String() string {
	switch e {
	case EvtRegionStart:
		return "REGION_START"
	case EvtRegionContinue:
		return "REGION_CONT"
	case EvtPreloadStall:
		return "PRELOAD_STALL"
	case EvtThermalReached:
		return "THERMAL_REACHED"
	case EvtResumeSynthesized:
		return "RESUME_SYNTH"
	default:
		return "NONE"
	}
}

// RingSize is how many recent events are retained, the same capacity
// core/debug.go's TimingRingSize carries.
const RingSize = 32

// Event is one recorded occurrence, the same fixed-field shape as
// core/debug.go's TimingEvent.
type Event struct {
	Type   EventType
	Tick   uint64
	Value1 uint32
	Value2 uint32
}

// Console owns a fixed-size event ring and an optional live serial
// drain. Unlike core/debug.go's package-level ring and DebugWriter func
// var, every piece of state here lives on the value; one Console exists
// per printer.
type Console struct {
	ring    [RingSize]Event
	head    int
	enabled bool
	port    *serial.Port
}

// New creates a Console with the live drain disabled; Record still
// fills the ring regardless, the same "timingEnabled always true" split
// core/debug.go makes between the always-on ring and the gated live
// writer.
func New() *Console {
	return &Console{}
}

// Open attaches a live serial drain at device, the same
// native-port-at-a-fixed-baud convention
// host/serial/serial_native.go's Open uses for the MCU link.
func Open(device string) (*Console, error) {
	c := New()
	port, err := serial.OpenPort(&serial.Config{Name: device, Baud: 250000})
	if err != nil {
		return nil, fmt.Errorf("debugconsole: open %s: %w", device, err)
	}
	c.port = port
	c.enabled = true
	return c, nil
}

// Close releases the underlying serial port, if one is attached.
func (c *Console) Close() error {
	if c.port == nil {
		return nil
	}
	return c.port.Close()
}

// SetEnabled toggles the live drain without detaching the port,
// matching core/debug.go's SetDebugEnabled (disabled by default for
// performance; the ring itself is unaffected).
func (c *Console) SetEnabled(enabled bool) { c.enabled = enabled }

// Record captures evt in the ring, always, and writes it immediately
// when enabled and a port is attached. Recording into the ring never
// blocks; only the live write can.
func (c *Console) Record(evt Event) {
	c.ring[c.head] = evt
	c.head = (c.head + 1) % RingSize
	if c.enabled && c.port != nil {
		c.writeLine(c.port, evt)
	}
}

func (c *Console) writeLine(w io.Writer, evt Event) {
	fmt.Fprintf(w, "[%s] tick=%d v1=%d v2=%d\n", evt.Type, evt.Tick, evt.Value1, evt.Value2)
}

// Dump writes every non-empty ring slot, oldest first, to w — the
// post-mortem drain core/debug.go's DumpTimingRing performs on its
// package-level ring, generalized to any writer so it works over the
// attached serial port or a host-side test buffer alike.
func (c *Console) Dump(w io.Writer) {
	for i := 0; i < RingSize; i++ {
		idx := (c.head + i) % RingSize
		evt := c.ring[idx]
		if evt.Type == EvtNone {
			continue
		}
		c.writeLine(w, evt)
	}
}
