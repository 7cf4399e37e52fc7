package printer

import (
	"printerfirm/cache"
	"printerfirm/executor"
	"printerfirm/material"
	"printerfirm/ports"
	"printerfirm/record"
)

// Printer is the top-level value a board integration constructs once at
// boot: configuration, the internal block store, the removable-card
// filesystem, and the executor that drives everything else. Grounded
// on standalone/planner/planner.go's NewPlanner/InitSteppers wiring and
// targets/rp2040/main.go's boot sequence, collapsed from the teacher's
// package-level driver globals into one constructed value.
type Printer struct {
	cfg   MachineConfig
	store ports.BlockStore
	fs    ports.Filesystem
	exec  *executor.Executor
	bank  material.Bank
}

// New wires a Printer from its configuration and hardware ports.
func New(cfg MachineConfig, gpio ports.Gpio, store ports.BlockStore, fs ports.Filesystem) *Printer {
	return &Printer{
		cfg:   cfg,
		store: store,
		fs:    fs,
		exec:  executor.New(gpio, cfg.ExecutorPins(), cfg.Scale(), cfg.AccelEnabled),
	}
}

// LoadMaterials reads the persisted override bank from sector 5
// (spec.md §3); call once at boot before accepting SelectMaterial.
func (p *Printer) LoadMaterials() error {
	bank, err := material.Load(p.store)
	if err != nil {
		return err
	}
	p.bank = bank
	return nil
}

// SelectMaterial arms slot i's override as the executor's active
// shadow set. An out-of-range i clears the override entirely, the same
// effect as the bank never having been loaded.
func (p *Printer) SelectMaterial(i int) {
	if i < 0 || i >= p.bank.Count {
		p.exec.SetMaterialOverride(material.Override{})
		return
	}
	p.exec.SetMaterialOverride(p.bank.Slots[i])
}

// CompileFile compiles filename from the removable card into the
// internal cache starting at cache.FirstRecordSector (spec.md §4.1-4.4).
func (p *Printer) CompileFile(filename string) (cache.ControlBlock, error) {
	return Compile(p.fs, p.store, filename, p.cfg.Scale(), p.cfg.MaxFetch, cache.FirstRecordSector)
}

// StartPrint arms a freshly compiled stream as the executor's primary
// source (spec.md §4.5's print_from_cache).
func (p *Printer) StartPrint(cb cache.ControlBlock) error {
	reader, err := cache.NewReader(p.store, cb.StartSector)
	if err != nil {
		return err
	}
	p.exec.SetPrimarySource(executor.NewStorageSource(reader, cb.StartSector, cb.CommandCount))
	return nil
}

// Resume restores the persisted PrinterState and arms the synthesized
// return move that runs before the stored stream continues (spec.md
// §4.5, §9).
func (p *Printer) Resume(cb cache.ControlBlock) error {
	reader, err := cache.NewReader(p.store, cb.StartSector)
	if err != nil {
		return err
	}
	src := executor.NewStorageSource(reader, cb.StartSector, cb.CommandCount)
	return p.exec.Resume(p.store, src)
}

// InjectService arms a short in-memory command buffer ahead of the
// primary stream (spec.md §4.5's print_from_buffer), e.g. for a
// calibration routine run mid-print.
func (p *Printer) InjectService(records []record.Record) { p.exec.InjectService(records) }

// NextCommand advances the dispatcher by one compiled record.
func (p *Printer) NextCommand() (executor.Status, error) {
	return p.exec.NextCommand()
}

// Tick services one 10 kHz hardware tick (spec.md §2, §4.5).
func (p *Printer) Tick(nozzleADC, bedADC ports.ADC) executor.Status {
	return p.exec.ExecuteTick(nozzleADC, bedADC)
}

// LoadData performs the opportunistic preload read; call from the main
// loop only, never from Tick (spec.md §4.5).
func (p *Printer) LoadData() error {
	return p.exec.LoadData()
}

// SaveState persists the primary PrinterState to sector 4. G99/G60
// dispatch already updated its Saved* fields before this is called.
func (p *Printer) SaveState() error {
	return p.exec.SaveState(p.store)
}

// State reports the executor's current machine state.
func (p *Printer) State() executor.MachineState {
	return p.exec.State()
}
