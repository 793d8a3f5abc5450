package cmd

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"

	"github.com/spiffcs/tanuki/internal/log"
)

// Diagnostics manages the hidden profiling and metrics flags for one command run.
type Diagnostics struct {
	cpuFile   *os.File
	traceFile *os.File

	opts *Options
}

// NewDiagnostics creates diagnostics for the paths in opts. Empty paths
// disable the corresponding output.
func NewDiagnostics(opts *Options) *Diagnostics {
	return &Diagnostics{opts: opts}
}

// Start begins CPU profiling and execution tracing if configured.
func (d *Diagnostics) Start() error {
	if d.opts.CPUProfile != "" {
		f, err := os.Create(d.opts.CPUProfile)
		if err != nil {
			return fmt.Errorf("could not create CPU profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return fmt.Errorf("could not start CPU profile: %w", err)
		}
		d.cpuFile = f
	}

	if d.opts.Trace != "" {
		f, err := os.Create(d.opts.Trace)
		if err != nil {
			d.stopCPU()
			return fmt.Errorf("could not create trace: %w", err)
		}
		if err := trace.Start(f); err != nil {
			f.Close()
			d.stopCPU()
			return fmt.Errorf("could not start trace: %w", err)
		}
		d.traceFile = f
	}

	return nil
}

// Stop ends profiling, then writes the heap profile and metrics if configured.
func (d *Diagnostics) Stop() {
	if d.traceFile != nil {
		trace.Stop()
		closeLogged(d.traceFile, "trace")
		d.traceFile = nil
	}

	d.stopCPU()

	if d.opts.MemProfile != "" {
		d.writeHeapProfile()
	}

	if d.opts.Metrics != "" {
		if err := dumpMetrics(d.opts.Metrics); err != nil {
			log.Warn("failed to write metrics", "error", err)
		}
	}
}

func (d *Diagnostics) writeHeapProfile() {
	f, err := os.Create(d.opts.MemProfile)
	if err != nil {
		log.Warn("could not create memory profile", "error", err)
		return
	}
	defer closeLogged(f, "memory profile")

	runtime.GC() // up-to-date statistics
	if err := pprof.WriteHeapProfile(f); err != nil {
		log.Warn("could not write memory profile", "error", err)
	}
}

func (d *Diagnostics) stopCPU() {
	if d.cpuFile == nil {
		return
	}
	pprof.StopCPUProfile()
	closeLogged(d.cpuFile, "CPU profile")
	d.cpuFile = nil
}

func closeLogged(f *os.File, what string) {
	if err := f.Close(); err != nil {
		log.Warn("could not close "+what+" file", "error", err)
	}
}
