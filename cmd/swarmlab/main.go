package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/swarmlab/internal/analysis"
	"github.com/san-kum/swarmlab/internal/config"
	"github.com/san-kum/swarmlab/internal/dynamo"
	"github.com/san-kum/swarmlab/internal/experiment"
	"github.com/san-kum/swarmlab/internal/metrics"
	"github.com/san-kum/swarmlab/internal/storage"
)

var (
	dataDir   string
	logLevel  string
	logFormat string

	// run configuration, layered preset < config file < flags
	preset      string
	configFile  string
	seed        uint32
	steps       int
	count       int
	capacity    int
	sampleEvery int
	force       string
	finder      string
	integrator  string
	paramSets   []string

	numRuns     int
	columns     []string
	spectrum    bool
	frameRate   int
	themeName   string
	outFile     string
	format      string
	width       int
	height      int
	chartWidth  int
	chartHeight int
	rotX        float64
	rotY        float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "swarmlab",
		Short:         "particle, flocking and evolution simulation lab",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogger(logLevel, logFormat)
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".swarmlab", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	runCmd := &cobra.Command{
		Use:   "run [mode]",
		Short: "run a simulation and record its telemetry",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	addConfigFlags(runCmd)

	ensembleCmd := &cobra.Command{
		Use:   "ensemble [mode]",
		Short: "run the same setup over consecutive seeds in parallel",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runEnsemble,
	}
	addConfigFlags(ensembleCmd)
	ensembleCmd.Flags().IntVar(&numRuns, "runs", 4, "number of seeds")

	benchCmd := &cobra.Command{
		Use:   "bench [mode]",
		Short: "time the step under each neighbour finder",
		Args:  cobra.MaximumNArgs(1),
		RunE:  benchMode,
	}
	addConfigFlags(benchCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run telemetry",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringSliceVar(&columns, "column", []string{"population"}, "telemetry columns ("+strings.Join(storage.Columns(), ", ")+")")
	plotCmd.Flags().BoolVar(&spectrum, "spectrum", false, "plot the power spectrum instead")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "write run telemetry as CSV to stdout",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "chart one telemetry column as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringSliceVar(&columns, "column", []string{"population"}, "telemetry column")
	exportSVGCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")
	exportSVGCmd.Flags().IntVar(&chartWidth, "width", 800, "image width")
	exportSVGCmd.Flags().IntVar(&chartHeight, "height", 400, "image height")

	snapshotCmd := &cobra.Command{
		Use:   "snapshot [mode]",
		Short: "run a simulation and write its final frame as SVG or JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportSnapshot,
	}
	addConfigFlags(snapshotCmd)
	snapshotCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")
	snapshotCmd.Flags().StringVar(&format, "format", "svg", "output format (svg, json)")
	snapshotCmd.Flags().IntVar(&width, "width", 800, "image width")
	snapshotCmd.Flags().IntVar(&height, "height", 800, "image height")
	snapshotCmd.Flags().Float64Var(&rotX, "rot-x", 0, "camera pitch in radians")
	snapshotCmd.Flags().Float64Var(&rotY, "rot-y", 0, "camera yaw in radians")
	snapshotCmd.Flags().StringVar(&themeName, "theme", "cyberpunk", "colour theme")

	liveCmd := &cobra.Command{
		Use:   "live [mode]",
		Short: "run a simulation with live visualization",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	addConfigFlags(liveCmd)
	liveCmd.Flags().IntVar(&frameRate, "fps", 30, "frame rate")
	liveCmd.Flags().StringVar(&themeName, "theme", "cyberpunk", "colour theme ("+strings.Join(themeNames(), ", ")+")")

	paletteCmd := &cobra.Command{
		Use:   "palette [mode]",
		Short: "plot the initial entity colours in RGB and HSV space",
		Args:  cobra.MaximumNArgs(1),
		RunE:  showPalette,
	}
	addConfigFlags(paletteCmd)
	paletteCmd.Flags().StringVar(&themeName, "theme", "cyberpunk", "colour theme")

	presetsCmd := &cobra.Command{
		Use:   "presets [mode]",
		Short: "list available presets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			modes := config.Modes()
			if len(args) == 1 {
				modes = args
			}
			for _, mode := range modes {
				presets := config.ListPresets(mode)
				if len(presets) == 0 {
					fmt.Printf("no presets for mode: %s\n", mode)
					continue
				}
				fmt.Printf("presets for %s:\n", mode)
				for _, p := range presets {
					fmt.Printf("  %s\n", p)
				}
			}
			return nil
		},
	}

	paramsCmd := &cobra.Command{
		Use:   "params",
		Short: "list tunable parameters and their ranges",
		RunE: func(cmd *cobra.Command, args []string) error {
			defaults := dynamo.DefaultParams()
			values := defaults.GetParams()
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDEFAULT\tMIN\tMAX")
			for _, name := range dynamo.ParamNames() {
				b := dynamo.Bounds[name]
				fmt.Fprintf(w, "%s\t%g\t%g\t%g\n", name, values[name], b.Min, b.Max)
			}
			return w.Flush()
		},
	}

	rootCmd.AddCommand(runCmd, ensembleCmd, benchCmd, listCmd, plotCmd, exportCmd, exportCSVCmd,
		exportSVGCmd, snapshotCmd, liveCmd, paletteCmd, presetsCmd, paramsCmd)
	rootCmd.AddCommand(batchCommands()...)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func setupLogger(level, format string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler
	switch format {
	case "text":
		h = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		h = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("unknown log format: %s", format)
	}
	slog.SetDefault(slog.New(h))
	return nil
}

func addConfigFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&preset, "preset", "", "start from a preset")
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.Uint32Var(&seed, "seed", config.DefaultSeed, "random seed")
	f.IntVar(&steps, "steps", config.DefaultSteps, "steps to run")
	f.IntVar(&count, "count", config.DefaultCount, "initial entity count")
	f.IntVar(&capacity, "capacity", config.DefaultCapacity, "maximum entity count")
	f.IntVar(&sampleEvery, "sample-every", config.DefaultSampleEvery, "telemetry interval in steps")
	f.StringVar(&force, "force", "", "force model (gravity, barneshut, flocking)")
	f.StringVar(&finder, "finder", "", "neighbour finder (brute, hash)")
	f.StringVar(&integrator, "integrator", "", "integrator (symplectic, euler)")
	f.StringArrayVar(&paramSets, "set", nil, "override a parameter, name=value (repeatable)")
}

// resolveConfig layers the mode defaults or preset, the config file and the
// flags the user actually set.
func resolveConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	mode := ""
	if len(args) > 0 {
		mode = args[0]
	}

	var cfg *config.Config
	switch {
	case preset != "":
		if mode == "" {
			return nil, errors.New("--preset needs a mode")
		}
		cfg = config.GetPreset(mode, preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(mode))
		}
	case mode == "" && configFile != "":
		c, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = c
	default:
		if mode == "" {
			mode = config.ModeGravity
		}
		c, err := config.ForMode(mode)
		if err != nil {
			return nil, err
		}
		cfg = c
	}

	if configFile != "" && (mode != "" || preset != "") {
		c, err := config.Overlay(configFile, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = c
	}

	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("steps") {
		cfg.Steps = steps
	}
	if flags.Changed("count") {
		cfg.Count = count
		if !flags.Changed("capacity") && cfg.Capacity < count {
			cfg.Capacity = count
		}
	}
	if flags.Changed("capacity") {
		cfg.Capacity = capacity
	}
	if flags.Changed("sample-every") {
		cfg.SampleEvery = sampleEvery
	}
	if force != "" {
		cfg.Force = force
	}
	if finder != "" {
		cfg.Finder = finder
	}
	if integrator != "" {
		cfg.Integrator = integrator
	}
	for _, kv := range paramSets {
		name, raw, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("--set %q: want name=value", kv)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("--set %s: %w", name, err)
		}
		err = cfg.Params.SetParam(name, v)
		switch {
		case errors.Is(err, dynamo.ErrUnknownParam):
			return nil, err
		case err != nil:
			slog.Warn("parameter clamped", "err", err)
		}
	}

	return cfg, cfg.Validate()
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	exp, err := experiment.New(cfg, nil, slog.Default())
	if err != nil {
		return err
	}
	eng, err := exp.Build(cfg.Seed)
	if err != nil {
		return err
	}
	for _, m := range exp.Metrics() {
		eng.AddMetric(m)
	}

	st := storage.New(dataDir)
	run, err := st.Begin(cfg)
	if err != nil {
		return err
	}
	eng.AddObserver(run)

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("running %s simulation (%d entities, %d steps)...\n", cfg.Mode, cfg.Count, cfg.Steps)
	start := time.Now()

	result, runErr := eng.Run(ctx, exp.RunConfig())
	elapsed := time.Since(start)

	if result == nil {
		return runErr
	}
	if err := run.Finish(result.Metrics, result.Population, runErr); err != nil {
		return errors.Join(runErr, err)
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", run.ID())
	fmt.Printf("steps: %d\n", result.StepsTaken)
	fmt.Printf("population: %d\n", result.Population)
	if t := result.Totals; cfg.Lifecycle {
		fmt.Printf("births: %d (%d rejected), deaths: %d (%d culled), eaten: %d\n",
			t.Births, t.Rejected, t.Deaths, t.Culled, t.Eaten)
	}
	fmt.Println("\nmetrics:")
	for _, name := range sortedKeys(result.Metrics) {
		fmt.Printf("  %s: %.6f\n", name, result.Metrics[name])
	}
	return runErr
}

func runEnsemble(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	exp, err := experiment.New(cfg, nil, slog.Default())
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	ens := exp.Ensemble(numRuns)
	fmt.Printf("running %d %s simulations...\n", numRuns, cfg.Mode)
	start := time.Now()
	results, runErr := ens.Run(ctx, exp.RunConfig())
	fmt.Printf("completed in %v\n\n", time.Since(start))

	var names []string
	for _, r := range results {
		if r != nil {
			names = sortedKeys(r.Metrics)
			break
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprint(w, "SEED\tSTEPS\tPOP")
	for _, n := range names {
		fmt.Fprintf(w, "\t%s", strings.ToUpper(n))
	}
	fmt.Fprintln(w)

	perMetric := make(map[string][]float64)
	for i, r := range results {
		if r == nil {
			continue
		}
		fmt.Fprintf(w, "%d\t%d\t%d", ens.Seeds()[i], r.StepsTaken, r.Population)
		for _, n := range names {
			fmt.Fprintf(w, "\t%.4g", r.Metrics[n])
			perMetric[n] = append(perMetric[n], r.Metrics[n])
		}
		fmt.Fprintln(w)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Println("\nsummary:")
	for _, n := range names {
		s := metrics.Summarize(perMetric[n])
		fmt.Printf("  %s: mean %.4g std %.4g [%.4g, %.4g] n=%d\n", n, s.Mean, s.StdDev, s.Min, s.Max, s.N)
	}
	return runErr
}

// benchMode times the same run under each neighbour finder.
func benchMode(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("steps") {
		cfg.Steps = 200
	}

	registry := experiment.NewRegistry()
	fmt.Printf("benchmarking %s (%d entities, %d steps)\n\n", cfg.Mode, cfg.Count, cfg.Steps)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FINDER\tSTEPS\tTIME\tSTEPS/SEC\tPOP")

	for _, name := range registry.ListFinders() {
		c := cfg.Clone()
		c.Finder = name
		exp, err := experiment.New(c, registry, slog.Default())
		if err != nil {
			return err
		}
		eng, err := exp.Build(c.Seed)
		if err != nil {
			return err
		}

		start := time.Now()
		result, err := eng.Run(context.Background(), exp.RunConfig())
		if err != nil {
			return err
		}
		elapsed := time.Since(start)

		fmt.Fprintf(w, "%s\t%d\t%v\t%.0f\t%d\n",
			name, result.StepsTaken, elapsed.Round(time.Millisecond),
			float64(result.StepsTaken)/elapsed.Seconds(), result.Population)
	}
	return w.Flush()
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODE\tTIME\tSEED\tSTEPS\tCOUNT\tPOP\tFORCE\tINTEG\tERROR")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\t%s\n",
			run.ID,
			run.Mode,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Seed,
			run.Steps,
			run.Count,
			run.Population,
			run.Force,
			run.Integrator,
			run.Error,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	records, err := st.LoadTelemetry(runID)
	if err != nil {
		return err
	}
	if len(records) < 2 {
		return fmt.Errorf("not enough telemetry to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("mode: %s\n", meta.Mode)
	fmt.Printf("samples: %d\n\n", len(records))

	interval := float64(records[1].Step - records[0].Step)

	for _, col := range columns {
		data, err := storage.Column(records, col)
		if err != nil {
			return err
		}

		if !spectrum {
			fmt.Println(asciigraph.Plot(data,
				asciigraph.Height(10),
				asciigraph.Width(80),
				asciigraph.Caption(col),
			))
			fmt.Println()
			continue
		}

		sp := analysis.PowerSpectrum(data)
		if len(sp.Power) < 2 {
			return fmt.Errorf("not enough telemetry for a spectrum")
		}
		fmt.Println(asciigraph.Plot(sp.Power[1:],
			asciigraph.Height(12),
			asciigraph.Width(80),
			asciigraph.Caption("power spectrum ("+col+")"),
		))
		fmt.Println()
		if period, ok := analysis.DominantPeriod(data); ok {
			fmt.Printf("dominant period: %.1f steps\n\n", period*interval)
		} else {
			fmt.Printf("no dominant period in %s\n\n", col)
		}
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	return writeJSON(os.Stdout, meta)
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	records, err := st.LoadTelemetry(args[0])
	if err != nil {
		return err
	}
	return gocsv.Marshal(records, os.Stdout)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
