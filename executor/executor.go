// Package executor implements the real-time dispatcher of spec.md
// §4.5: it drives compiled record.Record values against the 10 kHz
// tick, owns the four-state machine (idle/moving/waiting-on-nozzle/
// waiting-on-bed), the primary-vs-service PrinterState duality, and
// the resumable print cursor.
//
// The queue/ticks pump shape (one struct owning motor generators, a
// state machine, and a per-tick advance method) is grounded on
// core/stepper.go's Stepper (OID-keyed queue, CurrentAdd-adjusted
// interval, Timer-driven dispatch) and
// standalone/planner/planner.go's executeNextMove/QueueMove pump,
// generalized from the teacher's queue-of-moves model to spec.md's
// single-in-flight-record-plus-region-scheduler model.
package executor

import (
	"printerfirm/accel"
	"printerfirm/cache"
	"printerfirm/ferr"
	"printerfirm/gcode"
	"printerfirm/material"
	"printerfirm/ports"
	"printerfirm/pulse"
	"printerfirm/record"
	"printerfirm/region"
	"printerfirm/thermal"
)

// Status mirrors the outcomes spec.md §4.5 names for next_command and
// execute_tick.
type Status int

const (
	StatusOk Status = iota
	StatusIncomplete
	StatusPreloadRequired
	StatusFinished
)

// MachineState is the bitmask state machine of spec.md §3. Moving
// leaves to Idle only once every motor program and both thermal-wait
// flags are clear; wait states are OR'd with Moving, not exclusive
// of it.
type MachineState uint8

const (
	StateIdle       MachineState = 0
	StateMoving     MachineState = 1 << 0
	StateWaitNozzle MachineState = 1 << 1
	StateWaitBed    MachineState = 1 << 2
)

// Active selects which PrinterState (primary or service) the executor
// currently mutates (spec.md §3's "state duality").
type Active int

const (
	ActivePrimary Active = iota
	ActiveService
)

const (
	axisX = 0
	axisY = 1
	axisZ = 2
	axisE = 3
)

// Source abstracts where compiled records come from: the on-storage
// cache for a primary print, or an in-memory slice for an injected
// service buffer (spec.md §4.5's print_from_cache / print_from_buffer).
type Source interface {
	// Peek returns the record at the cursor and whether it is ready.
	// ready is false only for a storage source blocked on a pending
	// preload (PreloadRequired).
	Peek() (record.Record, bool)
	// Advance moves past the just-dispatched record.
	Advance()
	// Done reports whether every record has been dispatched.
	Done() bool
	// Poll is the opportunistic main-loop hook (spec.md §4.5's
	// load_data); a no-op for in-memory sources.
	Poll() error
}

// BufferSource serves records from an in-memory slice — the shape
// spec.md §4.5 describes for an injected service buffer, which never
// blocks on storage.
type BufferSource struct {
	records []record.Record
	idx     int
}

// NewBufferSource creates a Source over an already-compiled slice.
func NewBufferSource(records []record.Record) *BufferSource {
	return &BufferSource{records: records}
}

func (b *BufferSource) Peek() (record.Record, bool) {
	if b.idx >= len(b.records) {
		return record.Record{}, false
	}
	return b.records[b.idx], true
}
func (b *BufferSource) Advance()   { b.idx++ }
func (b *BufferSource) Done() bool { return b.idx >= len(b.records) }
func (b *BufferSource) Poll() error { return nil }

// StorageSource serves records from the internal block store's
// compiled stream through a cache.Reader, tracking the slot cursor
// (0..15) within the reader's main page and requesting the next
// sector's preload ahead of need (spec.md §4.4/§4.5).
type StorageSource struct {
	reader        *cache.Reader
	slot          int
	sector        uint32
	dispatched    uint32
	totalCommands uint32
}

// NewStorageSource wraps reader, which must already hold the stream's
// first sector as its main page.
func NewStorageSource(reader *cache.Reader, startSector, totalCommands uint32) *StorageSource {
	s := &StorageSource{reader: reader, sector: startSector, totalCommands: totalCommands}
	s.arm()
	return s
}

func (s *StorageSource) arm() {
	if s.dispatched < s.totalCommands && s.slot == cache.RecordsPerSector-1 {
		s.reader.RequestPreload(s.sector + 1)
	}
}

func (s *StorageSource) Peek() (record.Record, bool) {
	if s.Done() {
		return record.Record{}, false
	}
	if s.slot >= cache.RecordsPerSector {
		if !s.reader.Swap() {
			return record.Record{}, false
		}
		s.slot = 0
		s.sector++
	}
	return s.reader.MainRecord(s.slot), true
}

func (s *StorageSource) Advance() {
	s.dispatched++
	s.slot++
	if s.slot >= cache.RecordsPerSector {
		if s.reader.Swap() {
			s.slot = 0
			s.sector++
		}
		// If Swap fails, slot stays at cache.RecordsPerSector: Peek
		// retries the swap and reports not-ready (PreloadRequired)
		// until the preload has been loaded.
	}
	s.arm()
}

func (s *StorageSource) Done() bool {
	return s.dispatched >= s.totalCommands
}

func (s *StorageSource) Poll() error { return s.reader.LoadData() }

// Pins names the GPIO lines the executor drives directly (spec.md §5:
// "each motor owns two pins, each thermal regulator one, the cooler
// one"). The board pin-map itself is out of scope (spec.md §6); this
// struct only names the roles.
type Pins struct {
	XStep, XDir ports.Pin
	YStep, YDir ports.Pin
	ZStep, ZDir ports.Pin
	EStep, EDir ports.Pin
	Nozzle      ports.Pin
	Bed         ports.Pin
	Cooler      ports.Pin
}

// Executor is the real-time dispatcher. One value exists per printer.
type Executor struct {
	gpio  ports.Gpio
	pins  Pins
	scale gcode.AxisScale

	motors   [4]*pulse.Generator
	dir      [4]bool
	axisLeft [4]uint32 // ticks remaining on this axis's generator before its segment's quota is met

	segmentActive   bool
	segmentTicks    uint32 // nominal ticks budgeted for the in-flight segment
	segmentElapsed  uint32 // internal (gated) ticks consumed so far

	scheduler    *accel.Scheduler
	accelEnabled bool

	nozzle *thermal.Regulator
	bed    *thermal.Regulator
	cooler *pulse.Cooler

	override material.Override

	primary cache.PrinterState
	service cache.PrinterState
	active  Active

	primarySource Source
	serviceSource Source

	state MachineState
	tick  uint64

	pendingResume bool
}

// New creates an Executor. accelEnabled toggles the trapezoidal
// scheduler of spec.md §4.8; some scenarios (spec.md §8 scenario 1)
// run with it disabled. scale is used only to time the synthesized
// resume move (spec.md §4.5), which never passes through the compiler.
func New(gpio ports.Gpio, pins Pins, scale gcode.AxisScale, accelEnabled bool) *Executor {
	return &Executor{
		gpio:  gpio,
		pins:  pins,
		scale: scale,
		motors: [4]*pulse.Generator{
			pulse.New(pulse.TrailingBias),
			pulse.New(pulse.TrailingBias),
			pulse.New(pulse.TrailingBias),
			pulse.New(pulse.LeadingBias),
		},
		scheduler:    accel.New(),
		accelEnabled: accelEnabled,
		nozzle:       thermal.New(thermal.ActiveHigh),
		bed:          thermal.New(thermal.ActiveLow),
		cooler:       pulse.NewCooler(),
	}
}

// SetPrimarySource arms the stream a primary print dispatches from.
func (e *Executor) SetPrimarySource(src Source) { e.primarySource = src }

// SetMaterialOverride arms the active material override, or clears it
// with a zero Override (spec.md §3).
func (e *Executor) SetMaterialOverride(o material.Override) { e.override = o }

// State reports the current machine state.
func (e *Executor) State() MachineState { return e.state }

// ActivePrinterState returns the PrinterState currently being mutated.
func (e *Executor) ActivePrinterState() cache.PrinterState {
	if e.active == ActiveService {
		return e.service
	}
	return e.primary
}

func (e *Executor) activeStatePtr() *cache.PrinterState {
	if e.active == ActiveService {
		return &e.service
	}
	return &e.primary
}

func (e *Executor) currentSource() Source {
	if e.active == ActiveService {
		return e.serviceSource
	}
	return e.primarySource
}

// InjectService arms a short in-memory command buffer as the active
// stream (spec.md §4.5's print_from_buffer): the primary cursor and
// sector are preserved, and only the service cursor resets.
func (e *Executor) InjectService(records []record.Record) {
	e.service = cache.PrinterState{}
	e.serviceSource = NewBufferSource(records)
	e.active = ActiveService
}

// NextCommand advances by one compiled record (spec.md §4.5).
func (e *Executor) NextCommand() (Status, error) {
	if e.state&(StateMoving|StateWaitNozzle|StateWaitBed) != 0 {
		return StatusIncomplete, nil
	}
	if e.pendingResume {
		e.pendingResume = false
		e.startResumeMove()
		return StatusIncomplete, nil
	}

	src := e.currentSource()
	if src == nil || src.Done() {
		if e.active == ActiveService {
			e.endService()
			return StatusOk, nil
		}
		return StatusFinished, nil
	}

	rec, ready := src.Peek()
	if !ready {
		return StatusPreloadRequired, nil
	}

	status, err := e.dispatch(rec)
	if err != nil {
		return StatusOk, err
	}
	src.Advance()
	return status, nil
}

// endService flips the active pointer back to primary once an
// injected service buffer drains (spec.md §4.5).
func (e *Executor) endService() {
	e.serviceSource = nil
	e.active = ActivePrimary
}

// LoadData performs the opportunistic preload read (spec.md §4.5);
// call from the main loop, not from execute_tick.
func (e *Executor) LoadData() error {
	src := e.currentSource()
	if src == nil {
		return nil
	}
	return src.Poll()
}

func (e *Executor) dispatch(rec record.Record) (Status, error) {
	state := e.activeStatePtr()

	switch rec.Opcode {
	case record.OpMove, record.OpHome:
		e.startMove(rec)
		state.ActualX += rec.Motion.X
		state.ActualY += rec.Motion.Y
		state.ActualZ += rec.Motion.Z
		state.ActualE += rec.Motion.E
		return StatusIncomplete, nil

	case record.OpSetPosition:
		state.ActualX, state.ActualY, state.ActualZ, state.ActualE =
			rec.Motion.X, rec.Motion.Y, rec.Motion.Z, rec.Motion.E
		return StatusOk, nil

	case record.OpSavePosition:
		state.SavedX, state.SavedY, state.SavedZ, state.SavedE =
			rec.Motion.X, rec.Motion.Y, rec.Motion.Z, rec.Motion.E
		return StatusOk, nil

	case record.OpSaveState:
		state.SavedX, state.SavedY, state.SavedZ, state.SavedE =
			rec.Motion.X, rec.Motion.Y, rec.Motion.Z, rec.Motion.E
		return StatusOk, nil

	case record.OpSetNozzleTemp:
		target := e.override.ShadowNozzle(rec.Sub.S)
		state.NozzleSetpoint = target
		e.nozzle.SetTarget(int32(target))
		return StatusOk, nil

	case record.OpWaitNozzle:
		target := e.override.ShadowNozzle(rec.Sub.S)
		state.NozzleSetpoint = target
		e.nozzle.SetTarget(int32(target))
		e.state |= StateWaitNozzle
		return StatusIncomplete, nil

	case record.OpSetBedTemp:
		target := e.override.ShadowBed(rec.Sub.S)
		state.BedSetpoint = target
		e.bed.SetTarget(int32(target))
		return StatusOk, nil

	case record.OpWaitBed:
		target := e.override.ShadowBed(rec.Sub.S)
		state.BedSetpoint = target
		e.bed.SetTarget(int32(target))
		e.state |= StateWaitBed
		return StatusIncomplete, nil

	case record.OpSetCooler:
		speed := e.override.ShadowCooler(uint16(rec.Sub.S))
		e.cooler.SetSpeed(speed)
		return StatusOk, nil

	case record.OpStartResume:
		e.pendingResume = true
		return StatusOk, nil
	}

	return StatusOk, ferr.New(ferr.KindInvalidParameter, "unknown opcode")
}

// startResumeMove synthesizes the return-to-pause move spec.md §4.5
// and §9 require unconditionally on M24: a move from the saved actual
// position back to the saved logical position at 1800 mm/min.
func (e *Executor) startResumeMove() {
	state := e.activeStatePtr()
	dx := state.SavedX - state.ActualX
	dy := state.SavedY - state.ActualY
	dz := state.SavedZ - state.ActualZ
	de := state.SavedE - state.ActualE
	const resumeFetch uint32 = 1800
	segTicks := region.SegmentTicks(e.scale, dx, dy, dz, de, resumeFetch)
	rec := record.Record{
		Opcode: record.OpMove,
		Family: record.FamilyMotion,
		Motion: record.Motion{
			X:            dx,
			Y:            dy,
			Z:            dz,
			E:            de,
			Fetch:        resumeFetch,
			SegmentTime:  segTicks,
			SequenceTime: segTicks,
		},
	}
	e.startMove(rec)
	state.ActualX, state.ActualY, state.ActualZ, state.ActualE =
		state.SavedX, state.SavedY, state.SavedZ, state.SavedE
}

// startMove arms all four axis generators and, when acceleration is
// enabled and this record starts (or continues) a region, the rung
// scheduler (spec.md §4.7, §4.8).
func (e *Executor) startMove(rec record.Record) {
	e.state |= StateMoving
	e.segmentTicks = rec.Motion.SegmentTime
	if e.segmentTicks == 0 {
		e.segmentTicks = 1
	}
	e.segmentElapsed = 0
	e.segmentActive = true

	steps := [4]int32{rec.Motion.X, rec.Motion.Y, rec.Motion.Z, rec.Motion.E}
	for i, d := range steps {
		mag := d
		if mag < 0 {
			mag = -mag
		}
		e.dir[i] = d >= 0
		e.motors[i].Configure(e.segmentTicks, uint32(mag))
	}

	if e.accelEnabled && rec.Motion.SequenceTime > 0 {
		e.scheduler.StartRegion(rec.Motion.SequenceTime, float64(rec.Motion.Fetch))
	}
}

// ExecuteTick services one 10 kHz tick: a thermal ADC sample every
// thermal.ServiceTicks ticks (divided here), cooler PWM every 100 ticks
// (divided inside pulse.Cooler), heater pins, acceleration gating and
// motor pulse emission every tick (spec.md §4.5).
func (e *Executor) ExecuteTick(nozzleADC, bedADC ports.ADC) Status {
	e.tick++

	if e.tick%thermal.ServiceTicks == 0 {
		if v, ready := nozzleADC.Sample(0); ready {
			e.nozzle.Sample(int32(v))
		}
		if v, ready := bedADC.Sample(0); ready {
			e.bed.Sample(int32(v))
		}
	}
	nozzleOn := e.nozzle.Tick()
	bedOn := e.bed.Tick()
	_ = e.gpio.Write(e.pins.Nozzle, nozzleOn)
	_ = e.gpio.Write(e.pins.Bed, bedOn)

	coolerOn := e.cooler.Tick()
	_ = e.gpio.Write(e.pins.Cooler, coolerOn)

	if e.state&StateWaitNozzle != 0 && e.nozzle.Reached() {
		e.state &^= StateWaitNozzle
	}
	if e.state&StateWaitBed != 0 && e.bed.Reached() {
		e.state &^= StateWaitBed
	}

	if e.segmentActive {
		e.tickMotors()
	}

	if e.state&StateMoving != 0 && !e.segmentActive {
		e.state &^= StateMoving
	}

	if e.state == StateIdle {
		return StatusOk
	}
	return StatusIncomplete
}

// tickMotors advances the in-flight segment by one tick, respecting
// the acceleration scheduler's gate when active (spec.md §4.8 point 4:
// "ask the pulse generator whether this tick should carry the motor
// step emission; if not, skip motor processing for this tick").
func (e *Executor) tickMotors() {
	gate := true
	if e.accelEnabled {
		gate = e.scheduler.Tick()
	}
	if !gate {
		return
	}

	for i := 0; i < 4; i++ {
		if e.motors[i].Tick() {
			e.pulsePin(i)
		}
	}

	e.segmentElapsed++
	if e.segmentElapsed >= e.segmentTicks {
		e.segmentActive = false
	}
}

func (e *Executor) pulsePin(axis int) {
	step, dirPin := e.stepDirPins(axis)
	_ = e.gpio.Write(dirPin, e.dir[axis])
	_ = e.gpio.Write(step, true)
	_ = e.gpio.Write(step, false)
}

func (e *Executor) stepDirPins(axis int) (step, dir ports.Pin) {
	switch axis {
	case axisX:
		return e.pins.XStep, e.pins.XDir
	case axisY:
		return e.pins.YStep, e.pins.YDir
	case axisZ:
		return e.pins.ZStep, e.pins.ZDir
	default:
		return e.pins.EStep, e.pins.EDir
	}
}

// SaveState persists the primary PrinterState to sector 4, whose
// Saved* fields G99/G60 dispatch already updated; the service state is
// never persisted (spec.md §8 property 5: two back-to-back calls are
// byte-identical).
func (e *Executor) SaveState(store ports.BlockStore) error {
	return cache.SaveState(store, e.primary)
}

// Resume restores the persisted PrinterState as the primary state and
// arms the synthesized return move that will run before the first
// real NextCommand call drains the stored stream (spec.md §4.5, §9).
func (e *Executor) Resume(store ports.BlockStore, src Source) error {
	st, err := cache.LoadState(store)
	if err != nil {
		return err
	}
	e.primary = st
	e.active = ActivePrimary
	e.primarySource = src
	e.nozzle.SetTarget(int32(st.NozzleSetpoint))
	e.bed.SetTarget(int32(st.BedSetpoint))
	e.state = StateWaitNozzle | StateWaitBed
	e.pendingResume = true
	return nil
}
