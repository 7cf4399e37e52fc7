// Command firmware runs the printer core against host-side port
// implementations, the flag-driven CLI shape the teacher's own
// host/cmd/gopper-host/main.go used for its host/MCU split, adapted
// here to drive the firmware core directly instead of talking to a
// separate device over a wire protocol. A real device build swaps
// targets/hostsim's Gpio/BlockStore/ADC/Ticker for targets/rp2040's;
// the USB/watchdog boot sequence that would wrap that swap is out of
// scope here.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"printerfirm/debugconsole"
	"printerfirm/executor"
	"printerfirm/ports"
	"printerfirm/printer"
	"printerfirm/targets/hostsim"
)

var (
	configPath  = flag.String("config", "printer.json", "path to machine configuration JSON")
	gcodeFile   = flag.String("gcode", "", "G-code file to compile and print (idle if empty)")
	materialIdx = flag.Int("material", -1, "material bank slot to select (-1 for none)")
	debugDevice = flag.String("debug-device", "", "serial device for the debug console (optional)")
)

func main() {
	flag.Parse()

	fmt.Println("printerfirm host runner")
	fmt.Println("=======================")

	cfgData, err := os.ReadFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	cfg, err := printer.LoadConfig(cfgData)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	var console *debugconsole.Console
	if *debugDevice != "" {
		console, err = debugconsole.Open(*debugDevice)
		if err != nil {
			fmt.Fprintf(os.Stderr, "debug console: %v\n", err)
			os.Exit(1)
		}
		defer console.Close()
	} else {
		console = debugconsole.New()
	}

	gpio := hostsim.NewGpio()
	store := hostsim.NewBlockStore()
	fs, name, err := loadFilesystem(*gcodeFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gcode: %v\n", err)
		os.Exit(1)
	}

	p := printer.New(cfg, gpio, store, fs)

	if err := p.LoadMaterials(); err != nil {
		fmt.Fprintf(os.Stderr, "materials: %v\n", err)
		os.Exit(1)
	}
	p.SelectMaterial(*materialIdx)

	if name == "" {
		fmt.Println("no -gcode given; printer idle")
		return
	}

	cb, err := p.CompileFile(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "compile: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("compiled %d commands starting at sector %d\n", cb.CommandCount, cb.StartSector)

	if err := p.StartPrint(cb); err != nil {
		fmt.Fprintf(os.Stderr, "start: %v\n", err)
		os.Exit(1)
	}

	run(p, console)
}

// run drives the executor at its nominal 10 kHz rate until the stream
// drains, recovering from a panic in any one tick the way the
// teacher's own device main loop guarded each iteration rather than
// letting one bad tick take the whole process down. The rate is
// scheduled through ports.Ticker rather than a bare time.Ticker, the
// same escape hatch targets/rp2040's hardware Ticker implements for
// the device build.
func run(p *printer.Printer, console *debugconsole.Console) {
	nozzleADC := &hostsim.VariableADC{}
	bedADC := &hostsim.VariableADC{}

	var tick uint64
	done := make(chan struct{})

	ticker := hostsim.NewTicker()
	ticker.Schedule(10000, func() {
		func() {
			defer func() {
				if r := recover(); r != nil {
					console.Record(debugconsole.Event{Type: debugconsole.EvtPreloadStall, Tick: tick})
				}
			}()

			status, err := p.NextCommand()
			if err != nil {
				fmt.Fprintf(os.Stderr, "dispatch: %v\n", err)
				os.Exit(1)
			}
			if status == executor.StatusFinished {
				ticker.Stop()
				console.Dump(os.Stdout)
				fmt.Println("print complete")
				close(done)
				return
			}

			p.Tick(nozzleADC, bedADC)
			_ = p.LoadData()
		}()
		tick++
	})
	<-done
}

// loadFilesystem wraps the on-disk file named by path in an in-memory
// ports.Filesystem, since the firmware core only ever talks to
// ports.Filesystem, never the OS directly.
func loadFilesystem(path string) (ports.Filesystem, string, error) {
	if path == "" {
		return hostsim.NewFilesystem(nil), "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	name := filepath.Base(path)
	return hostsim.NewFilesystem(map[string][]byte{name: data}), name, nil
}
