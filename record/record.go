// Package record implements the fixed 32-byte compiled command record
// described in spec.md §3 and §6: the unit of storage for the internal
// cache and the unit of dispatch for the executor.
//
// The layout mirrors the teacher's little-endian wire conventions in
// protocol/vlq.go and protocol/buffers.go, but trades VLQ's variable
// length for a fixed-size struct — every record is exactly one cache
// slot (32 bytes, 16 per 512-byte sector) regardless of content.
package record

import (
	"encoding/binary"
	"errors"
)

// Size is the fixed on-disk/in-cache size of a compiled command record.
const Size = 32

// PerSector is how many fixed-size records pack into one 512-byte
// storage sector (spec.md §3: "packed 16 per sector").
const PerSector = 16

// Family distinguishes a motion command (G) from a subcommand (M).
type Family byte

const (
	FamilyMotion Family = 'G'
	FamilySub    Family = 'M'
)

// Opcode identifies the operation a record performs.
type Opcode byte

const (
	OpMove Opcode = iota
	OpHome
	OpSetPosition
	OpSavePosition
	OpSaveState
	OpSetNozzleTemp
	OpWaitNozzle
	OpSetBedTemp
	OpWaitBed
	OpSetCooler
	OpStartResume
)

func (o Opcode) String() string {
	switch o {
	case OpMove:
		return "move"
	case OpHome:
		return "home"
	case OpSetPosition:
		return "set-position"
	case OpSavePosition:
		return "save-position"
	case OpSaveState:
		return "save-state"
	case OpSetNozzleTemp:
		return "set-nozzle-temp"
	case OpWaitNozzle:
		return "wait-nozzle"
	case OpSetBedTemp:
		return "set-bed-temp"
	case OpWaitBed:
		return "wait-bed"
	case OpSetCooler:
		return "set-cooler"
	case OpStartResume:
		return "start-resume"
	default:
		return "unknown"
	}
}

// IsMotion reports whether this opcode carries a motion payload
// (the set described in spec.md §3: move, home, set-position,
// save-position, save-state).
func (o Opcode) IsMotion() bool {
	switch o {
	case OpMove, OpHome, OpSetPosition, OpSavePosition, OpSaveState:
		return true
	default:
		return false
	}
}

// ErrTruncated is returned when a byte slice is shorter than Size.
var ErrTruncated = errors.New("record: buffer shorter than 32 bytes")

// Motion holds the payload for a motion-family record: integer step
// deltas plus the two precomputed timing fields (spec.md §4.6, §4.3).
type Motion struct {
	X, Y, Z, E   int32
	Fetch        uint32 // mm/min
	SegmentTime  uint32 // ticks
	SequenceTime uint32 // ticks; non-zero only on a region's base record
}

// Sub holds the payload for a subcommand-family record. Only S is used
// by this core (spec.md §3).
type Sub struct {
	S, I, R, P int16
}

// Record is a single 32-byte compiled command.
type Record struct {
	Opcode Opcode
	Family Family
	Motion Motion
	Sub    Sub
}

// Encode serializes r into its fixed 32-byte wire form.
func (r Record) Encode() [Size]byte {
	var buf [Size]byte
	buf[0] = byte(r.Opcode)
	buf[1] = byte(r.Family)
	// buf[2:4] padding, left zero

	if r.Opcode.IsMotion() {
		binary.LittleEndian.PutUint32(buf[4:8], uint32(r.Motion.X))
		binary.LittleEndian.PutUint32(buf[8:12], uint32(r.Motion.Y))
		binary.LittleEndian.PutUint32(buf[12:16], uint32(r.Motion.Z))
		binary.LittleEndian.PutUint32(buf[16:20], uint32(r.Motion.E))
		binary.LittleEndian.PutUint32(buf[20:24], r.Motion.Fetch)
		binary.LittleEndian.PutUint32(buf[24:28], r.Motion.SegmentTime)
		binary.LittleEndian.PutUint32(buf[28:32], r.Motion.SequenceTime)
	} else {
		binary.LittleEndian.PutUint16(buf[4:6], uint16(r.Sub.S))
		binary.LittleEndian.PutUint16(buf[6:8], uint16(r.Sub.I))
		binary.LittleEndian.PutUint16(buf[8:10], uint16(r.Sub.R))
		binary.LittleEndian.PutUint16(buf[10:12], uint16(r.Sub.P))
	}
	return buf
}

// Decode parses a 32-byte wire record.
func Decode(buf []byte) (Record, error) {
	if len(buf) < Size {
		return Record{}, ErrTruncated
	}
	r := Record{
		Opcode: Opcode(buf[0]),
		Family: Family(buf[1]),
	}
	if r.Opcode.IsMotion() {
		r.Motion = Motion{
			X:            int32(binary.LittleEndian.Uint32(buf[4:8])),
			Y:            int32(binary.LittleEndian.Uint32(buf[8:12])),
			Z:            int32(binary.LittleEndian.Uint32(buf[12:16])),
			E:            int32(binary.LittleEndian.Uint32(buf[16:20])),
			Fetch:        binary.LittleEndian.Uint32(buf[20:24]),
			SegmentTime:  binary.LittleEndian.Uint32(buf[24:28]),
			SequenceTime: binary.LittleEndian.Uint32(buf[28:32]),
		}
	} else {
		r.Sub = Sub{
			S: int16(binary.LittleEndian.Uint16(buf[4:6])),
			I: int16(binary.LittleEndian.Uint16(buf[6:8])),
			R: int16(binary.LittleEndian.Uint16(buf[8:10])),
			P: int16(binary.LittleEndian.Uint16(buf[10:12])),
		}
	}
	return r, nil
}
