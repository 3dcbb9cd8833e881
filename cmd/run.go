package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cosim-dev/cosim/sim/execution"
	"github.com/cosim-dev/cosim/sim/recorder"
	"github.com/cosim-dev/cosim/sim/system"
	"github.com/cosim-dev/cosim/sim/trace"
)

// runConfig is a run request after flag parsing. Nil or empty overrides keep
// the values of the system file.
type runConfig struct {
	SystemPath string
	Method     string
	Workers    *int
	Seed       *int64
	OutputPath string
	TraceLevel trace.TraceLevel
}

// runSimulation loads, builds and runs a system and prints the summary to out.
func runSimulation(ctx context.Context, cfg runConfig, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	d, err := system.Load(cfg.SystemPath)
	if err != nil {
		return err
	}
	if cfg.Method != "" {
		d.Executor.Method = cfg.Method
	}
	if cfg.Workers != nil {
		d.Executor.Workers = *cfg.Workers
	}
	if cfg.Seed != nil {
		d.Simulation.Seed = *cfg.Seed
	}
	if err := d.Validate(); err != nil {
		return err
	}

	s, err := d.Build()
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			logrus.Warnf("Terminating models: %v", err)
		}
	}()
	exec, err := s.Executor()
	if err != nil {
		return err
	}
	defer exec.Close()

	var st *trace.SimulationTrace
	if cfg.TraceLevel != "" && cfg.TraceLevel != trace.TraceLevelNone {
		st = trace.NewSimulationTrace(cfg.TraceLevel)
		exec.SetTracer(st)
		for _, m := range s.Models {
			m.SetTracer(st)
		}
	}

	var rec *recorder.Recorder
	if cfg.OutputPath != "" {
		file, err := os.Create(cfg.OutputPath)
		if err != nil {
			return fmt.Errorf("creating output: %w", err)
		}
		defer file.Close()
		rec = recorder.New(file, 0)
		for _, m := range s.Models {
			rec.AddStorage(m.InputStorage())
			rec.AddStorage(m.OutputStorage())
		}
		exec.SetRecorder(rec)
		if err := rec.Start(); err != nil {
			return err
		}
	}

	run, err := execution.NewSimulation(exec, s.Start, s.Stop, s.Timestep)
	if err != nil {
		return err
	}
	began := time.Now()
	runErr := run.Run(ctx)
	elapsed := time.Since(began)

	if rec != nil {
		if err := rec.Stop(); err != nil && runErr == nil {
			runErr = fmt.Errorf("recording: %w", err)
		}
		header := recorder.RunHeader{
			RunID:    rec.RunID().String(),
			Method:   string(exec.Method()),
			Start:    s.Start,
			Stop:     s.Stop,
			Timestep: s.Timestep,
			Storages: rec.Storages(),
			Created:  time.Now().UTC(),
		}
		if err := recorder.WriteHeader(headerPath(cfg.OutputPath), header); err != nil {
			logrus.Warnf("Writing run header: %v", err)
		}
	}
	if runErr != nil {
		return runErr
	}

	printSummary(out, exec, run.Steps(), elapsed, st)
	return nil
}

// headerPath places the run header next to the CSV: results.csv -> results.run.yaml.
func headerPath(output string) string {
	ext := filepath.Ext(output)
	return strings.TrimSuffix(output, ext) + ".run.yaml"
}

func printSummary(out io.Writer, exec execution.Executor, steps int, elapsed time.Duration, st *trace.SimulationTrace) {
	fmt.Fprintln(out, "=== Simulation Summary ===")
	fmt.Fprintf(out, "Method               : %s\n", exec.Method())
	fmt.Fprintf(out, "Macro Steps          : %d\n", steps)
	fmt.Fprintf(out, "Final Time           : %d ns\n", exec.CurrentTime())
	fmt.Fprintf(out, "Wall Time            : %v\n", elapsed)
	for _, n := range exec.Nodes() {
		fmt.Fprintf(out, "  %-18s : current %d ns, wall %v\n", n.Name(), n.CurrentTime(), n.Walltime())
	}
	if st == nil {
		return
	}
	summary := trace.Summarize(st)
	fmt.Fprintln(out, "=== Trace ===")
	fmt.Fprintf(out, "Waves                : %d (%v)\n", summary.TotalWaves, summary.WaveWalltime)
	fmt.Fprintf(out, "Invocations          : %d\n", summary.TotalInvocations)
	for _, ns := range summary.Nodes {
		fmt.Fprintf(out, "  %-18s : %d calls, mean %v, max %v\n", ns.Node, ns.Invocations, ns.MeanWalltime, ns.MaxWalltime)
	}
}
