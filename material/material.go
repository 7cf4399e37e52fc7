// Package material implements the removable-card material override
// file (spec.md §6, `.mtl`) and the 16-slot override bank persisted at
// sector 5 of the internal block store (spec.md §3).
//
// The guard-byte-first, length-fixed record convention follows the
// same shape cache.ControlBlock/PrinterState use (grounded there on
// protocol/crc16.go's wire-integrity pattern); material.Override is
// simply another guarded record sharing that convention, sized to the
// "16 slots × 32 B" layout spec.md §3 names.
package material

import (
	"encoding/binary"
	"io"

	"printerfirm/ferr"
	"printerfirm/ports"
	"printerfirm/protocol"
)

// SlotSize is one material override record's on-disk size (spec.md §3:
// "Material override array (16 slots × 32 B)").
const SlotSize = 32

// SlotCount is the fixed number of override slots (spec.md §3).
const SlotCount = 16

// NameLen is the material name field width (spec.md §6: "9-char name").
const NameLen = 9

var guard = [4]byte{'m', 't', 'r', 'l'}

// Override is the decoded content of one material slot/`.mtl` file:
// setpoints and flow/cooler overrides that shadow G-code-supplied
// values when non-zero (spec.md §3).
type Override struct {
	Name        [NameLen]byte
	Nozzle      uint16 // °C
	Bed         uint16 // °C
	FlowPercent uint16 // 0 is treated as 100 (spec.md §6)
	Cooler      uint16 // 0..255
}

// NormalizedFlow returns FlowPercent, substituting 100 for a zero
// value (spec.md §6: "u16 flow percent (0 → treat as 100)").
func (o Override) NormalizedFlow() uint16 {
	if o.FlowPercent == 0 {
		return 100
	}
	return o.FlowPercent
}

// ShadowNozzle applies the override to a G-code-supplied nozzle
// setpoint: a non-zero override wins, but an explicit zero from the
// command (shutdown) is never masked (spec.md §3).
func (o Override) ShadowNozzle(commanded int16) int16 {
	if commanded == 0 {
		return 0
	}
	if o.Nozzle != 0 {
		return int16(o.Nozzle)
	}
	return commanded
}

// ShadowBed applies the override to a G-code-supplied bed setpoint,
// with the same shutdown-is-never-masked rule as ShadowNozzle.
func (o Override) ShadowBed(commanded int16) int16 {
	if commanded == 0 {
		return 0
	}
	if o.Bed != 0 {
		return int16(o.Bed)
	}
	return commanded
}

// ShadowCooler applies the override to a G-code-supplied cooler speed.
func (o Override) ShadowCooler(commanded uint16) uint16 {
	if commanded == 0 {
		return 0
	}
	if o.Cooler != 0 {
		return o.Cooler
	}
	return commanded
}

// Encode serializes one override into its guarded, CRC16-trailed
// 32-byte slot form.
func (o Override) Encode() [SlotSize]byte {
	var buf [SlotSize]byte
	copy(buf[0:4], guard[:])
	copy(buf[4:4+NameLen], o.Name[:])
	binary.LittleEndian.PutUint16(buf[13:15], o.Nozzle)
	binary.LittleEndian.PutUint16(buf[15:17], o.Bed)
	binary.LittleEndian.PutUint16(buf[17:19], o.FlowPercent)
	binary.LittleEndian.PutUint16(buf[19:21], o.Cooler)
	crc := protocol.CRC16(buf[:21])
	binary.LittleEndian.PutUint16(buf[21:23], crc)
	return buf
}

// Decode parses one 32-byte material slot or `.mtl` record.
func Decode(buf [SlotSize]byte) (Override, error) {
	var o Override
	if [4]byte(buf[0:4]) != guard {
		return o, ferr.New(ferr.KindFileNotMaterial, "bad material guard")
	}
	crc := binary.LittleEndian.Uint16(buf[21:23])
	if protocol.CRC16(buf[:21]) != crc {
		return o, ferr.New(ferr.KindFileNotMaterial, "material record CRC mismatch")
	}
	copy(o.Name[:], buf[4:4+NameLen])
	o.Nozzle = binary.LittleEndian.Uint16(buf[13:15])
	o.Bed = binary.LittleEndian.Uint16(buf[15:17])
	o.FlowPercent = binary.LittleEndian.Uint16(buf[17:19])
	o.Cooler = binary.LittleEndian.Uint16(buf[19:21])
	return o, nil
}

// LoadFile reads a single `.mtl` record from the removable card
// (spec.md §6).
func LoadFile(fs ports.Filesystem, name string) (Override, error) {
	f, err := fs.Open(name)
	if err != nil {
		return Override{}, ferr.Wrap(ferr.KindFileNotFound, name, err)
	}
	defer f.Close()

	var buf [SlotSize]byte
	if _, err := io.ReadFull(f, buf[:]); err != nil {
		return Override{}, ferr.Wrap(ferr.KindFileNotMaterial, name, err)
	}
	return Decode(buf)
}

// Bank is the persisted 16-slot override array at sector 5 (spec.md
// §3). It is not, itself, sector-addressable record-per-record; the
// whole bank round-trips as one 512-byte sector using the sub-slot
// Encode/Decode above for each of its SlotCount entries.
type Bank struct {
	Slots [SlotCount]Override
	Count int
}

// Add appends an override to the bank, enforcing the fixed 16-slot cap
// (spec.md §7: TooManyMaterials; see original_source/ for the same
// cap in the C original, supplemented into this spec per SPEC_FULL.md).
func (b *Bank) Add(o Override) error {
	if b.Count >= SlotCount {
		return ferr.New(ferr.KindTooManyMaterials, "material bank full")
	}
	b.Slots[b.Count] = o
	b.Count++
	return nil
}

// Encode serializes the bank into sector 5's 512-byte form: SlotCount
// concatenated 32-byte slot records (16*32 = 512).
func (b *Bank) Encode() [ports.SectorSize]byte {
	var buf [ports.SectorSize]byte
	for i := 0; i < SlotCount; i++ {
		var slot [SlotSize]byte
		if i < b.Count {
			slot = b.Slots[i].Encode()
		}
		copy(buf[i*SlotSize:(i+1)*SlotSize], slot[:])
	}
	return buf
}

// DecodeBank parses sector 5's 512-byte form, skipping slots whose
// guard does not validate (an empty/never-written slot).
func DecodeBank(buf [ports.SectorSize]byte) Bank {
	var b Bank
	for i := 0; i < SlotCount; i++ {
		var slot [SlotSize]byte
		copy(slot[:], buf[i*SlotSize:(i+1)*SlotSize])
		o, err := Decode(slot)
		if err != nil {
			continue
		}
		b.Slots[b.Count] = o
		b.Count++
		_ = i
	}
	return b
}

// Save writes the bank to sector 5.
func Save(store ports.BlockStore, b Bank) error {
	buf := b.Encode()
	if err := store.WriteSector(MaterialSector, &buf); err != nil {
		return ferr.Wrap(ferr.KindSdcardFailure, "write material bank", err)
	}
	return nil
}

// Load reads the bank from sector 5.
func Load(store ports.BlockStore) (Bank, error) {
	var buf [ports.SectorSize]byte
	if err := store.ReadSector(MaterialSector, &buf); err != nil {
		return Bank{}, ferr.Wrap(ferr.KindSdcardFailure, "read material bank", err)
	}
	return DecodeBank(buf), nil
}

// MaterialSector is sector 5, the fixed home of the override bank
// (spec.md §3). Named independently of cache.MaterialSector so this
// package has no import-cycle dependency on cache.
const MaterialSector = 5
