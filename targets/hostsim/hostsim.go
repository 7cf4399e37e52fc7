// Package hostsim provides in-memory Gpio/BlockStore/ADC/Filesystem/
// Ticker implementations for host-side tests and the host build, the
// same role core/timer_go.go and core/interrupt_go.go play for the
// teacher's !tinygo fakes: no real hardware, deterministic behavior,
// constructed as plain values rather than package-level globals
// (spec.md §9's "Global state" design note).
package hostsim

import (
	"time"

	"printerfirm/ferr"
	"printerfirm/ports"
)

// Gpio is an in-memory pin bank. Writes are recorded per-pin so tests
// can assert on pulse sequences.
type Gpio struct {
	levels map[ports.Pin]bool
	writes map[ports.Pin]int
}

// NewGpio creates an empty pin bank.
func NewGpio() *Gpio {
	return &Gpio{levels: make(map[ports.Pin]bool), writes: make(map[ports.Pin]int)}
}

func (g *Gpio) Write(pin ports.Pin, level bool) error {
	g.levels[pin] = level
	if level {
		g.writes[pin]++
	}
	return nil
}

func (g *Gpio) Read(pin ports.Pin) (bool, error) {
	return g.levels[pin], nil
}

// RisingEdges reports how many times pin was driven high — the count
// of step pulses emitted on that pin (spec.md §8 scenario 1).
func (g *Gpio) RisingEdges(pin ports.Pin) int {
	return g.writes[pin]
}

// BlockStore is an in-memory 512-byte-sector store sized to hold a
// small compiled stream, enough for unit tests of cache and executor.
type BlockStore struct {
	sectors map[uint32]*[ports.SectorSize]byte
	// failReads counts, per sector, how many upcoming reads return
	// SdcardFailure (armed by FailNextReads) — for exercising the
	// MaxReadRetries path (spec.md §7).
	failReads map[uint32]int
}

// NewBlockStore creates an empty store.
func NewBlockStore() *BlockStore {
	return &BlockStore{sectors: make(map[uint32]*[ports.SectorSize]byte), failReads: make(map[uint32]int)}
}

func (b *BlockStore) ReadSector(sector uint32, buf *[ports.SectorSize]byte) error {
	if n := b.failReads[sector]; n > 0 {
		b.failReads[sector]--
		return ferr.New(ferr.KindSdcardFailure, "simulated read failure")
	}
	stored, ok := b.sectors[sector]
	if !ok {
		*buf = [ports.SectorSize]byte{}
		return nil
	}
	*buf = *stored
	return nil
}

func (b *BlockStore) WriteSector(sector uint32, buf *[ports.SectorSize]byte) error {
	cp := *buf
	b.sectors[sector] = &cp
	return nil
}

// FailNextReads arms n consecutive simulated failures for sector.
func (b *BlockStore) FailNextReads(sector uint32, n int) {
	b.failReads[sector] = n
}

// ADC is a scripted analog input: each call to Sample returns the next
// queued reading, or the last one repeated once the queue drains.
type ADC struct {
	readings []uint16
	idx      int
}

// NewADC creates a scripted ADC; VariableADC is usually more
// convenient for thermal tests driven by an environment model instead.
func NewADC(readings ...uint16) *ADC {
	return &ADC{readings: readings}
}

func (a *ADC) Sample(channel uint32) (uint16, bool) {
	if len(a.readings) == 0 {
		return 0, true
	}
	if a.idx >= len(a.readings) {
		return a.readings[len(a.readings)-1], true
	}
	v := a.readings[a.idx]
	a.idx++
	return v, true
}

// VariableADC lets a test mutate the reported value between ticks,
// modelling the closed-loop environment of spec.md §8 property 7.
type VariableADC struct {
	Value uint16
}

func (v *VariableADC) Sample(channel uint32) (uint16, bool) { return v.Value, true }

// File is an in-memory read-only file for Filesystem.
type File struct {
	data []byte
	pos  int
}

func (f *File) Read(p []byte) (int, error) {
	n := copy(p, f.data[f.pos:])
	f.pos += n
	if n == 0 {
		return 0, ferr.New(ferr.KindFileNotFound, "eof")
	}
	return n, nil
}
func (f *File) Close() error { return nil }

// Filesystem is an in-memory named-file store for G-code/material
// fixtures in tests.
type Filesystem struct {
	files map[string][]byte
}

// NewFilesystem creates a Filesystem seeded with the given files.
func NewFilesystem(files map[string][]byte) *Filesystem {
	return &Filesystem{files: files}
}

func (fs *Filesystem) Open(name string) (ports.File, error) {
	data, ok := fs.files[name]
	if !ok {
		return nil, ferr.New(ferr.KindFileNotFound, name)
	}
	return &File{data: data}, nil
}

// Ticker schedules fn on a time.Ticker at hz, the same scheduling
// targets/rp2040's Ticker performs on TinyGo's runtime timer.
type Ticker struct {
	t *time.Ticker
}

// NewTicker creates a Ticker with nothing scheduled yet.
func NewTicker() *Ticker {
	return &Ticker{}
}

// Schedule starts fn running at hz, stopping any previously scheduled
// callback first. It returns once the first tick has been armed; fn
// itself keeps running on its own goroutine until Stop is called.
func (t *Ticker) Schedule(hz uint32, fn func()) {
	t.Stop()
	if hz == 0 {
		return
	}
	t.t = time.NewTicker(time.Second / time.Duration(hz))
	ticker := t.t
	go func() {
		for range ticker.C {
			fn()
		}
	}()
}

// Stop cancels the scheduled callback, if any.
func (t *Ticker) Stop() {
	if t.t != nil {
		t.t.Stop()
		t.t = nil
	}
}
