// Package cache implements the double-buffered compile-time page writer
// and the executor's main/preload reader, plus the fixed sector layout
// of spec.md §3: PrinterState at sector 4, material overrides at
// sector 5, the ControlBlock at sector 10, compiled records packed 16
// per sector from sector 11 on.
//
// Persisted sectors carry a CRC16 the way the teacher guards wire
// messages (protocol/crc16.go) rather than relying on the block store
// to catch corruption.
package cache

import (
	"encoding/binary"

	"printerfirm/ferr"
	"printerfirm/ports"
	"printerfirm/protocol"
	"printerfirm/record"
)

const (
	StateSector      = 4
	MaterialSector   = 5
	ControlSector    = 10
	FirstRecordSector = 11

	RecordsPerSector = record.PerSector
)

var (
	stateGuard   = [4]byte{'s', 't', 'a', 't'}
	controlGuard = [4]byte{'p', 'r', 'n', 't'}
	materialGuard = [4]byte{'m', 't', 'r', 'l'}
)

// ControlBlock is the sector-10 header describing the compiled stream.
type ControlBlock struct {
	StartSector  uint32
	Filename     [32]byte
	CommandCount uint32
}

// EncodeControlBlock serializes a ControlBlock into a 512-byte sector,
// guard first, CRC16 last.
func EncodeControlBlock(cb ControlBlock) [ports.SectorSize]byte {
	var buf [ports.SectorSize]byte
	copy(buf[0:4], controlGuard[:])
	binary.LittleEndian.PutUint32(buf[4:8], cb.StartSector)
	copy(buf[8:40], cb.Filename[:])
	binary.LittleEndian.PutUint32(buf[40:44], cb.CommandCount)
	crc := protocol.CRC16(buf[:44])
	binary.LittleEndian.PutUint16(buf[44:46], crc)
	return buf
}

// DecodeControlBlock validates the guard and CRC before returning the
// parsed ControlBlock.
func DecodeControlBlock(buf [ports.SectorSize]byte) (ControlBlock, error) {
	var cb ControlBlock
	if [4]byte(buf[0:4]) != controlGuard {
		return cb, ferr.New(ferr.KindInvalidControlBlock, "bad control block guard")
	}
	crc := binary.LittleEndian.Uint16(buf[44:46])
	if protocol.CRC16(buf[:44]) != crc {
		return cb, ferr.New(ferr.KindInvalidControlBlock, "control block CRC mismatch")
	}
	cb.StartSector = binary.LittleEndian.Uint32(buf[4:8])
	copy(cb.Filename[:], buf[8:40])
	cb.CommandCount = binary.LittleEndian.Uint32(buf[40:44])
	return cb, nil
}

// PrinterState is the persisted resume cursor (spec.md §3): last saved
// absolute position, the service-state delta ("actual_position"), the
// last commanded setpoints, and the executor's place in the stream.
type PrinterState struct {
	SavedX, SavedY, SavedZ, SavedE     int32
	ActualX, ActualY, ActualZ, ActualE int32
	NozzleSetpoint                     int16
	BedSetpoint                        int16
	CommandIndex                       uint32
	CurrentSector                      uint32
	Caret                              uint8
}

// EncodeState serializes a PrinterState into its guarded, CRC-checked
// sector-4 form.
func EncodeState(s PrinterState) [ports.SectorSize]byte {
	var buf [ports.SectorSize]byte
	copy(buf[0:4], stateGuard[:])
	binary.LittleEndian.PutUint32(buf[4:8], uint32(s.SavedX))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(s.SavedY))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(s.SavedZ))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(s.SavedE))
	binary.LittleEndian.PutUint32(buf[20:24], uint32(s.ActualX))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(s.ActualY))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(s.ActualZ))
	binary.LittleEndian.PutUint32(buf[32:36], uint32(s.ActualE))
	binary.LittleEndian.PutUint16(buf[36:38], uint16(s.NozzleSetpoint))
	binary.LittleEndian.PutUint16(buf[38:40], uint16(s.BedSetpoint))
	binary.LittleEndian.PutUint32(buf[40:44], s.CommandIndex)
	binary.LittleEndian.PutUint32(buf[44:48], s.CurrentSector)
	buf[48] = s.Caret
	crc := protocol.CRC16(buf[:49])
	binary.LittleEndian.PutUint16(buf[49:51], crc)
	return buf
}

// DecodeState validates the guard and CRC before returning the parsed
// PrinterState. It is read back only at printer initialization
// (spec.md §3).
func DecodeState(buf [ports.SectorSize]byte) (PrinterState, error) {
	var s PrinterState
	if [4]byte(buf[0:4]) != stateGuard {
		return s, ferr.New(ferr.KindInvalidControlBlock, "bad printer state guard")
	}
	crc := binary.LittleEndian.Uint16(buf[49:51])
	if protocol.CRC16(buf[:49]) != crc {
		return s, ferr.New(ferr.KindInvalidControlBlock, "printer state CRC mismatch")
	}
	s.SavedX = int32(binary.LittleEndian.Uint32(buf[4:8]))
	s.SavedY = int32(binary.LittleEndian.Uint32(buf[8:12]))
	s.SavedZ = int32(binary.LittleEndian.Uint32(buf[12:16]))
	s.SavedE = int32(binary.LittleEndian.Uint32(buf[16:20]))
	s.ActualX = int32(binary.LittleEndian.Uint32(buf[20:24]))
	s.ActualY = int32(binary.LittleEndian.Uint32(buf[24:28]))
	s.ActualZ = int32(binary.LittleEndian.Uint32(buf[28:32]))
	s.ActualE = int32(binary.LittleEndian.Uint32(buf[32:36]))
	s.NozzleSetpoint = int16(binary.LittleEndian.Uint16(buf[36:38]))
	s.BedSetpoint = int16(binary.LittleEndian.Uint16(buf[38:40]))
	s.CommandIndex = binary.LittleEndian.Uint32(buf[40:44])
	s.CurrentSector = binary.LittleEndian.Uint32(buf[44:48])
	s.Caret = buf[48]
	return s, nil
}

// SaveState writes the PrinterState to sector 4. Two back-to-back
// calls with the same state produce byte-identical sectors (spec.md
// §8 property 5), since encoding is a pure function of s.
func SaveState(store ports.BlockStore, s PrinterState) error {
	buf := EncodeState(s)
	if err := store.WriteSector(StateSector, &buf); err != nil {
		return ferr.Wrap(ferr.KindSdcardFailure, "write printer state", err)
	}
	return nil
}

// LoadState reads and validates the persisted PrinterState.
func LoadState(store ports.BlockStore) (PrinterState, error) {
	var buf [ports.SectorSize]byte
	if err := store.ReadSector(StateSector, &buf); err != nil {
		return PrinterState{}, ferr.Wrap(ferr.KindSdcardFailure, "read printer state", err)
	}
	return DecodeState(buf)
}

func encodePage(page [RecordsPerSector]record.Record) [ports.SectorSize]byte {
	var buf [ports.SectorSize]byte
	for i, rec := range page {
		enc := rec.Encode()
		copy(buf[i*record.Size:(i+1)*record.Size], enc[:])
	}
	return buf
}

func decodePage(buf [ports.SectorSize]byte) ([RecordsPerSector]record.Record, error) {
	var page [RecordsPerSector]record.Record
	for i := range page {
		rec, err := record.Decode(buf[i*record.Size : (i+1)*record.Size])
		if err != nil {
			return page, err
		}
		page[i] = rec
	}
	return page, nil
}
