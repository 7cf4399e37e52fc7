// Package printer wires every domain package (gcode, region, cache,
// accel, pulse, thermal, material, executor) into the single value a
// board integration constructs once at boot: config loading, the
// compile-a-file pipeline, and the handful of print-lifecycle
// operations (compile, start, resume, tick, save).
//
// This is the one place spec.md §9's "Global state" design note talks
// about: rather than the teacher's package-level singleton drivers
// (core/*_hal.go's Set*Driver/Must* pattern), every piece of live state
// lives on a *Printer value passed around explicitly.
package printer

import (
	"encoding/json"

	"printerfirm/executor"
	"printerfirm/gcode"
	"printerfirm/ports"
)

// AxisScaleConfig is the JSON form of gcode.AxisScale (spec.md §3).
type AxisScaleConfig struct {
	X int32 `json:"x_steps_per_mm"`
	Y int32 `json:"y_steps_per_mm"`
	Z int32 `json:"z_steps_per_mm"`
	E int32 `json:"e_steps_per_mm"`
}

// PinConfig names the GPIO lines a board assigns to each role spec.md
// §5/§6 leaves out of scope for the core itself.
type PinConfig struct {
	XStep uint32 `json:"x_step"`
	XDir  uint32 `json:"x_dir"`
	YStep uint32 `json:"y_step"`
	YDir  uint32 `json:"y_dir"`
	ZStep uint32 `json:"z_step"`
	ZDir  uint32 `json:"z_dir"`
	EStep uint32 `json:"e_step"`
	EDir  uint32 `json:"e_dir"`

	Nozzle uint32 `json:"nozzle"`
	Bed    uint32 `json:"bed"`
	Cooler uint32 `json:"cooler"`
}

// MachineConfig is the JSON-loadable description of one printer: axis
// scale factors, the fetch-speed clamp, the GPIO pin map, and whether
// the trapezoidal scheduler is enabled.
type MachineConfig struct {
	AxisScale    AxisScaleConfig `json:"axis_scale"`
	MaxFetch     uint32          `json:"max_fetch_mm_min"`
	Pins         PinConfig       `json:"pins"`
	AccelEnabled bool            `json:"accel_enabled"`
}

// LoadConfig parses a JSON machine configuration, the same
// unmarshal-then-fill-defaults shape standalone/config/config.go uses
// for MachineConfig/AxisConfig/HeaterConfig.
func LoadConfig(data []byte) (MachineConfig, error) {
	var cfg MachineConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return MachineConfig{}, err
	}
	applyDefaults(&cfg)
	return cfg, nil
}

// applyDefaults fills in a common cartesian-hotend default (100/100/400
// steps per mm, 104 steps per mm extruder, typical of a 0.4 mm direct
// drive) when the config omits a value, the same role
// standalone/config/config.go's applyDefaults plays for its own
// MachineConfig.
func applyDefaults(cfg *MachineConfig) {
	if cfg.AxisScale.X == 0 {
		cfg.AxisScale.X = 100
	}
	if cfg.AxisScale.Y == 0 {
		cfg.AxisScale.Y = 100
	}
	if cfg.AxisScale.Z == 0 {
		cfg.AxisScale.Z = 400
	}
	if cfg.AxisScale.E == 0 {
		cfg.AxisScale.E = 104
	}
	if cfg.MaxFetch == 0 {
		cfg.MaxFetch = 6000
	}
}

// Scale converts the JSON axis scale into gcode.AxisScale.
func (c MachineConfig) Scale() gcode.AxisScale {
	return gcode.AxisScale{X: c.AxisScale.X, Y: c.AxisScale.Y, Z: c.AxisScale.Z, E: c.AxisScale.E}
}

// ExecutorPins converts the JSON pin map into executor.Pins.
func (c MachineConfig) ExecutorPins() executor.Pins {
	return executor.Pins{
		XStep: ports.Pin(c.Pins.XStep), XDir: ports.Pin(c.Pins.XDir),
		YStep: ports.Pin(c.Pins.YStep), YDir: ports.Pin(c.Pins.YDir),
		ZStep: ports.Pin(c.Pins.ZStep), ZDir: ports.Pin(c.Pins.ZDir),
		EStep: ports.Pin(c.Pins.EStep), EDir: ports.Pin(c.Pins.EDir),
		Nozzle: ports.Pin(c.Pins.Nozzle),
		Bed:    ports.Pin(c.Pins.Bed),
		Cooler: ports.Pin(c.Pins.Cooler),
	}
}
