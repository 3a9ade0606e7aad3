package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/mdsim/internal/config"
	"github.com/san-kum/mdsim/internal/engine"
	"github.com/san-kum/mdsim/internal/metrics"
	"github.com/san-kum/mdsim/internal/neighbor"
	"github.com/san-kum/mdsim/internal/storage"
	"github.com/san-kum/mdsim/internal/tui"
)

func runSimulation(cmd *cobra.Command, args []string) error {
	opts := []engine.Option{engine.WithLogger(newLogger()), engine.WithDiagnosticsEvery(diagEvery)}

	var e *engine.Engine
	if from != "" {
		snap, err := storage.New(dataDir).Load(from)
		if err != nil {
			return err
		}
		if e, err = storage.Open(snap, opts...); err != nil {
			return err
		}
	} else {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if e, err = engine.New(cfg, opts...); err != nil {
			return err
		}
		if temperature > 0 {
			e.Thermalize(temperature, seed)
		}
	}

	rec := engine.NewRecorder(e)
	rec.Observe(e.Diagnostics())

	worst := metrics.Stable
	var lastIssue metrics.Result
	e.Subscribe(engine.KindInstability, func(ev engine.Event) {
		if ev.Stability.Level > worst {
			worst = ev.Stability.Level
			fmt.Println(warnStyle.Render(fmt.Sprintf("step %d: %s: %s", ev.Step, ev.Stability.Level, ev.Stability.Message)))
		}
		lastIssue = ev.Stability
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := e.Config()
	fmt.Println(headerStyle.Render("mdsim run"))
	fmt.Println(dimStyle.Render(fmt.Sprintf("preset=%s particles=%d integrator=%s strategy=%s pbc=%v dt=%g",
		cfg.Name, cfg.World.ParticleCount, cfg.Runtime.Integrator, cfg.Neighbor.Strategy, cfg.Runtime.PBC, cfg.Runtime.Dt)))

	start := time.Now()
	var runErr error
	done := 0
	for ; done < steps; done++ {
		if ctx.Err() != nil {
			fmt.Println(warnStyle.Render("interrupted"))
			break
		}
		if runErr = e.Step(); runErr != nil {
			break
		}
	}
	elapsed := time.Since(start)

	d := e.Diagnostics()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "steps\t%d\n", done)
	fmt.Fprintf(w, "time\t%.4f\n", d.Time)
	fmt.Fprintf(w, "kinetic\t%.6g\n", d.Kinetic)
	fmt.Fprintf(w, "potential\t%.6g\n", d.Potential)
	fmt.Fprintf(w, "total\t%.6g\n", d.Total)
	fmt.Fprintf(w, "temperature\t%.4g\n", d.Temperature)
	fmt.Fprintf(w, "max speed\t%.4g\n", d.MaxSpeed)
	fmt.Fprintf(w, "max force\t%.4g\n", d.MaxForceMag)
	fmt.Fprintf(w, "energy drift\t%.3e\n", rec.EnergyDrift())
	fmt.Fprintf(w, "wall time\t%v (%.0f steps/s)\n", elapsed.Round(time.Millisecond), float64(done)/elapsed.Seconds())
	if err := w.Flush(); err != nil {
		return err
	}

	if worst == metrics.Stable {
		fmt.Println(okStyle.Render("stability: stable"))
	} else {
		fmt.Println(warnStyle.Render("stability: worst " + worst.String()))
		for _, s := range lastIssue.Suggestions {
			fmt.Println(dimStyle.Render("  - " + s))
		}
	}

	if plot {
		plotSeries(rec.Series())
	}

	if save {
		store := storage.New(dataDir)
		if err := store.Init(); err != nil {
			return err
		}
		id, err := store.Save(e, rec)
		if err != nil {
			return err
		}
		fmt.Println(okStyle.Render("saved snapshot " + id))
	}

	return runErr
}

func plotSeries(s engine.Series) {
	if len(s.Total) < 2 {
		fmt.Println(dimStyle.Render("not enough samples to plot"))
		return
	}
	for _, p := range []struct {
		caption string
		data    []float64
	}{
		{"total energy", s.Total},
		{"kinetic energy", s.Kinetic},
		{"temperature", s.Temperature},
	} {
		if !plottable(p.data) {
			fmt.Println(dimStyle.Render(p.caption + ": non-finite values, skipped"))
			continue
		}
		fmt.Println()
		fmt.Println(asciigraph.Plot(p.data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(p.caption),
		))
	}
}

func plottable(data []float64) bool {
	for _, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPARTICLES\tFORCES\tPBC\tINTEG\tSTRATEGY\tTHERMOSTAT")
	for _, name := range config.ListPresets() {
		cfg := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%d\t%s\t%v\t%s\t%s\t%v\n",
			name,
			cfg.World.ParticleCount,
			forceList(cfg.Forces, cfg.Runtime.PBC),
			cfg.Runtime.PBC,
			cfg.Runtime.Integrator,
			cfg.Neighbor.Strategy,
			cfg.Runtime.Thermostat.Enabled,
		)
	}
	return w.Flush()
}

func forceList(f config.Forces, periodic bool) string {
	var names []string
	prefix := ""
	if periodic {
		prefix = "ewald-"
	}
	if f.Gravity {
		names = append(names, prefix+"gravity")
	}
	if f.Coulomb {
		names = append(names, prefix+"coulomb")
	}
	if f.LennardJones {
		names = append(names, "lj")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}

// benchStrategies times full engine steps for each pair strategy on a
// Lennard-Jones gas held at the lj-gas density.
func benchStrategies(cmd *cobra.Command, args []string) error {
	names := neighbor.Names()
	if benchStrategy != "all" {
		names = []string{benchStrategy}
	}

	base := config.GetPreset("lj-gas")
	density := float64(base.World.ParticleCount) / (8 * base.World.Box.X * base.World.Box.Y * base.World.Box.Z)
	half := 0.5 * math.Cbrt(float64(benchParticles)/density)

	fmt.Printf("benchmarking %d particles, box half-extent %.2f, %d steps\n\n", benchParticles, half, benchSteps)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STRATEGY\tTIME\tPER STEP\tSTEPS/SEC")

	for _, name := range names {
		cfg := base.Clone()
		cfg.World.ParticleCount = benchParticles
		cfg.World.Box = config.Box{X: half, Y: half, Z: half}
		cfg.Neighbor.Strategy = name

		e, err := engine.New(cfg, engine.WithLogger(newLogger()))
		if err != nil {
			return err
		}
		e.Thermalize(1, 42)

		start := time.Now()
		if err := e.Run(benchSteps); err != nil {
			return err
		}
		elapsed := time.Since(start)
		per := elapsed / time.Duration(max(benchSteps, 1))
		fmt.Fprintf(w, "%s\t%v\t%v\t%.0f\n", name, elapsed.Round(time.Microsecond), per, float64(benchSteps)/elapsed.Seconds())
	}
	return w.Flush()
}

func runEnsemble(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	t := temperature
	if t <= 0 {
		t = 1
	}
	seeds := make([]int64, max(replicas, 1))
	for i := range seeds {
		seeds[i] = seed + int64(i)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("running %d replicas of %s at T=%g for %d steps\n\n", len(seeds), cfg.Name, t, ensembleSteps)
	results, runErr := engine.NewEnsemble(cfg, t, seeds, engine.WithLogger(newLogger())).Run(ctx, ensembleSteps)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEED\tSTEPS\tTOTAL\tTEMPERATURE\tDRIFT\tWORST")
	for _, r := range results {
		fmt.Fprintf(w, "%d\t%d\t%.6g\t%.4g\t%.3e\t%s\n", r.Seed, r.Steps, r.Final.Total, r.Final.Temperature, r.EnergyDrift, r.Worst)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return runErr
}

func listSnapshots(cmd *cobra.Command, args []string) error {
	runs, err := storage.New(dataDir).List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no snapshots found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPRESET\tSAVED\tPARTICLES\tSTEPS\tTIME\tINTEG\tSTRATEGY")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.4f\t%s\t%s\n",
			run.ID,
			run.Preset,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.ParticleCount,
			run.Steps,
			run.Time,
			run.Integrator,
			run.Strategy,
		)
	}
	return w.Flush()
}

func showSnapshot(cmd *cobra.Command, args []string) error {
	store := storage.New(dataDir)
	meta, err := store.LoadMetadata(args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return err
	}

	if plot {
		if !meta.HasSeries {
			return errors.New("snapshot has no recorded series")
		}
		series, err := store.LoadSeries(meta.ID)
		if err != nil {
			return err
		}
		plotSeries(series)
	}
	return nil
}

func watchSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// The dashboard owns the terminal, so the engine keeps its discard logger.
	e, err := engine.New(cfg, engine.WithDiagnosticsEvery(1))
	if err != nil {
		return err
	}
	if temperature > 0 {
		e.Thermalize(temperature, seed)
	}
	return tui.Run(e, interval)
}
