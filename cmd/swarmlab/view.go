package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/san-kum/swarmlab/internal/experiment"
	"github.com/san-kum/swarmlab/internal/export"
	"github.com/san-kum/swarmlab/internal/sim"
	"github.com/san-kum/swarmlab/internal/storage"
	"github.com/san-kum/swarmlab/internal/viz"
)

// runLive steps the simulation on its own goroutine and hands the viewer
// the loop. Logs go to a file so they do not tear the screen.
func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return err
	}
	logFile, err := os.OpenFile(filepath.Join(dataDir, "live.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer logFile.Close()
	logger := slog.New(slog.NewTextHandler(logFile, nil))

	exp, err := experiment.New(cfg, nil, logger)
	if err != nil {
		return err
	}
	eng, err := exp.Build(cfg.Seed)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	loop := sim.NewLoop(eng, 0)
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	model := viz.NewModel(loop, viz.Options{
		Title:       cfg.Mode,
		Capacity:    cfg.Capacity,
		BoundRadius: cfg.Params.BoundRadius,
		Headings:    cfg.Force == "flocking",
		Theme:       themeName,
		FPS:         frameRate,
	})
	_, uiErr := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(uiErr, tea.ErrProgramKilled) {
		uiErr = nil
	}

	cancel()
	loopErr := <-done
	if errors.Is(loopErr, context.Canceled) {
		loopErr = nil
	}
	return errors.Join(uiErr, loopErr)
}

// exportSnapshot runs the configured steps headless and writes the last frame.
func exportSnapshot(cmd *cobra.Command, args []string) error {
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

	ctx, cancel := signalContext()
	defer cancel()
	if _, err := eng.Run(ctx, exp.RunConfig()); err != nil {
		return err
	}
	snap := eng.Publisher().Latest()

	return writeOut(outFile, func(w io.Writer) error {
		switch format {
		case "json":
			return export.SnapshotJSON(w, cfg.Mode, cfg.Seed, snap)
		case "svg":
			cam := viz.NewCamera(cfg.Params.BoundRadius)
			cam.RotX, cam.RotY = rotX, rotY
			scene := viz.GetTheme(themeName).Scene(cfg.Params.BoundRadius, false)
			_, err := io.WriteString(w, export.SnapshotToSVG(snap, cam, export.SnapshotOptions{
				Width:      width,
				Height:     height,
				Background: scene.Background,
			}))
			return err
		default:
			return fmt.Errorf("unknown format: %s", format)
		}
	})
}

// exportSVG charts a telemetry column of a stored run.
func exportSVG(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	records, err := st.LoadTelemetry(args[0])
	if err != nil {
		return err
	}
	col := "population"
	if len(columns) > 0 {
		col = columns[0]
	}
	data, err := storage.Column(records, col)
	if err != nil {
		return err
	}

	points := make([]export.Point, len(records))
	for i, r := range records {
		points[i] = export.Point{X: float64(r.Step), Y: data[i]}
	}
	theme := viz.ThemeCyberpunk
	svg := export.SeriesToSVG(points, chartWidth, chartHeight, theme.Scene(0, false).Background, theme.Stroke())
	if svg == "" {
		return fmt.Errorf("not enough telemetry to chart")
	}
	return writeOut(outFile, func(w io.Writer) error {
		_, err := io.WriteString(w, svg)
		return err
	})
}

// showPalette prints the colours of the initial population as point clouds
// in the RGB cube and the HSV cylinder.
func showPalette(cmd *cobra.Command, args []string) error {
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
	snap := eng.Publisher().Latest()

	theme := viz.GetTheme(themeName)
	scene := theme.Scene(0, false)
	cam := viz.NewCamera(1)
	cam.RotX, cam.RotY = 0.5, 0.6

	var panels []string
	for _, view := range []viz.View{viz.ViewRGB, viz.ViewHSV} {
		c := viz.NewCanvas(40, 20)
		viz.Draw(c, snap, cam, view, scene)
		panels = append(panels, lipgloss.JoinVertical(lipgloss.Center, c.Render(theme.Text), view.String()))
	}
	fmt.Printf("%s: %d colours\n\n", cfg.Mode, len(snap.Entities))
	fmt.Println(lipgloss.JoinHorizontal(lipgloss.Top, panels...))
	return nil
}

func writeOut(path string, fn func(io.Writer) error) error {
	if path == "" {
		return fn(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func themeNames() []string { return viz.ThemeNames() }
