package main

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/swarmlab/internal/automation"
	"github.com/san-kum/swarmlab/internal/optim"
	"github.com/san-kum/swarmlab/internal/storage"
)

var (
	sweepParam string
	sweepMin   float64
	sweepMax   float64
	sweepN     int
	metricName string
	gridSpecs  []string
	maximize   bool
)

func batchCommands() []*cobra.Command {
	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run every step of a scenario file and store the runs",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep [mode]",
		Short: "run one setup across a range of a parameter",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSweep,
	}
	addConfigFlags(sweepCmd)
	sweepCmd.Flags().StringVar(&sweepParam, "param", "separation_distance", "parameter to sweep")
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 0, "first value")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 0.1, "last value")
	sweepCmd.Flags().IntVar(&sweepN, "n", 5, "number of values")

	searchCmd := &cobra.Command{
		Use:   "search [mode]",
		Short: "grid search parameters for the best metric value",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSearch,
	}
	addConfigFlags(searchCmd)
	searchCmd.Flags().StringArrayVar(&gridSpecs, "grid", nil, "name=v1,v2,... (repeatable)")
	searchCmd.Flags().StringVar(&metricName, "metric", "cohesion", "metric to optimise")
	searchCmd.Flags().BoolVar(&maximize, "maximize", false, "keep the largest value instead of the smallest")

	return []*cobra.Command{scenarioCmd, sweepCmd, searchCmd}
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	results, runErr := automation.RunScenario(ctx, sc, storage.New(dataDir), slog.Default())

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tMODE\tSTEPS\tPOP")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", r.RunID, r.Mode, r.Result.StepsTaken, r.Result.Population)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return runErr
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	results, runErr := automation.RunSweep(ctx, &automation.ParameterSweep{
		Base:      cfg,
		ParamName: sweepParam,
		ParamMin:  sweepMin,
		ParamMax:  sweepMax,
		NumSteps:  sweepN,
	}, slog.Default())

	var names []string
	if len(results) > 0 {
		names = sortedKeys(results[0].Metrics)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tPOP", strings.ToUpper(sweepParam))
	for _, n := range names {
		fmt.Fprintf(w, "\t%s", strings.ToUpper(n))
	}
	fmt.Fprintln(w)
	for _, r := range results {
		fmt.Fprintf(w, "%.4g\t%d", r.ParamValue, r.Population)
		for _, n := range names {
			fmt.Fprintf(w, "\t%.4g", r.Metrics[n])
		}
		fmt.Fprintln(w)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return runErr
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	names, ranges, err := parseGrid(gridSpecs)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	g := optim.NewGridSearch(names, ranges)
	g.Maximize = maximize
	best, val, trials, err := g.Search(ctx, cfg, metricName)
	if err != nil {
		return err
	}

	failed := 0
	for _, t := range trials {
		if t.Err != nil {
			failed++
			slog.Warn("grid point failed", "params", t.Params, "err", t.Err)
		}
	}
	fmt.Printf("%d grid points, %d failed\n", len(trials), failed)
	fmt.Printf("best %s: %.6g\n", metricName, val)
	keys := make([]string, 0, len(best))
	for k := range best {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %s = %g\n", k, best[k])
	}
	return nil
}

// parseGrid reads name=v1,v2,... specs.
func parseGrid(specs []string) ([]string, [][]float64, error) {
	if len(specs) == 0 {
		return nil, nil, fmt.Errorf("at least one --grid is required")
	}
	names := make([]string, 0, len(specs))
	ranges := make([][]float64, 0, len(specs))
	for _, spec := range specs {
		name, list, ok := strings.Cut(spec, "=")
		if !ok || list == "" {
			return nil, nil, fmt.Errorf("--grid %q: want name=v1,v2", spec)
		}
		var vals []float64
		for _, raw := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("--grid %s: %w", name, err)
			}
			vals = append(vals, v)
		}
		names = append(names, name)
		ranges = append(ranges, vals)
	}
	return names, ranges, nil
}
