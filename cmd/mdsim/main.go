package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/san-kum/mdsim/internal/config"
)

var (
	dataDir     string
	verbose     bool
	configFile  string
	preset      string
	steps       int
	particles   int
	dt          float64
	integrator  string
	strategy    string
	temperature float64
	seed        int64
	diagEvery   int
	plot        bool
	save        bool
	from        string
	interval    time.Duration

	benchParticles int
	benchStrategy  string
	benchSteps     int

	replicas      int
	ensembleSteps int
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ffff"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff88"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffcc00"))
	errStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ff4444"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#666688"))
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "mdsim",
		Short:         "n-body and molecular dynamics simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".mdsim", "snapshot directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log engine lifecycle to stderr")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a headless simulation",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addSetupFlags(runCmd)
	runCmd.Flags().IntVar(&steps, "steps", 1000, "number of steps")
	runCmd.Flags().IntVar(&diagEvery, "every", 10, "diagnostics interval in steps")
	runCmd.Flags().BoolVar(&plot, "plot", false, "plot energy and temperature")
	runCmd.Flags().BoolVar(&save, "save", false, "save a snapshot when done")
	runCmd.Flags().StringVar(&from, "from", "", "resume from a saved snapshot id")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "compare pair strategies",
		Args:  cobra.NoArgs,
		RunE:  benchStrategies,
	}
	benchCmd.Flags().IntVar(&benchParticles, "particles", 1000, "particle count")
	benchCmd.Flags().StringVar(&benchStrategy, "strategy", "all", "naive, cell or all")
	benchCmd.Flags().IntVar(&benchSteps, "steps", 20, "steps per strategy")

	ensembleCmd := &cobra.Command{
		Use:   "ensemble",
		Short: "run replicas that differ only in their thermal seed",
		Args:  cobra.NoArgs,
		RunE:  runEnsemble,
	}
	addSetupFlags(ensembleCmd)
	ensembleCmd.Flags().IntVar(&ensembleSteps, "steps", 500, "steps per replica")
	ensembleCmd.Flags().IntVar(&replicas, "replicas", 4, "number of replicas")

	snapshotsCmd := &cobra.Command{
		Use:   "snapshots",
		Short: "inspect saved snapshots",
	}
	snapshotsListCmd := &cobra.Command{
		Use:   "list",
		Short: "list snapshots",
		Args:  cobra.NoArgs,
		RunE:  listSnapshots,
	}
	snapshotsShowCmd := &cobra.Command{
		Use:   "show [id]",
		Short: "show snapshot metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  showSnapshot,
	}
	snapshotsShowCmd.Flags().BoolVar(&plot, "plot", false, "plot the recorded series")
	snapshotsCmd.AddCommand(snapshotsListCmd, snapshotsShowCmd)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "live diagnostics dashboard",
		Args:  cobra.NoArgs,
		RunE:  watchSimulation,
	}
	addSetupFlags(watchCmd)
	watchCmd.Flags().DurationVar(&interval, "interval", 33*time.Millisecond, "frame interval")

	rootCmd.AddCommand(runCmd, presetsCmd, benchCmd, ensembleCmd, snapshotsCmd, watchCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render("error:"), err)
		os.Exit(1)
	}
}

func addSetupFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&preset, "preset", "lj-gas", "preset name")
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml), overrides --preset")
	cmd.Flags().IntVar(&particles, "particles", 0, "override particle count")
	cmd.Flags().Float64Var(&dt, "dt", 0, "override timestep")
	cmd.Flags().StringVar(&integrator, "integrator", "", "override integrator (euler, verlet)")
	cmd.Flags().StringVar(&strategy, "strategy", "", "override pair strategy (naive, cell)")
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "thermalize to this temperature before running")
	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed for thermalization")
}

// loadConfig resolves the preset or config file, then applies flag
// overrides the user actually set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	if configFile != "" {
		c, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = c
	} else {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}

	flags := cmd.Flags()
	if flags.Changed("particles") {
		cfg.World.ParticleCount = particles
	}
	if flags.Changed("dt") {
		cfg.Runtime.Dt = dt
	}
	if flags.Changed("integrator") {
		cfg.Runtime.Integrator = integrator
	}
	if flags.Changed("strategy") {
		cfg.Neighbor.Strategy = strategy
	}
	return cfg, cfg.Validate()
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
