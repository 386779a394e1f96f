package viz

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/swarmlab/internal/dynamo"
	"github.com/san-kum/swarmlab/internal/snapshot"
)

func TestCanvasSetAndColor(t *testing.T) {
	c := NewCanvas(4, 2)
	red := colorful.Color{R: 1}
	blue := colorful.Color{B: 1}

	c.SetColor(0, 0, red)
	c.SetColor(1, 0, blue)
	if c.Grid[0][0] != rune(blank|0x1|0x8) {
		t.Errorf("expected dots 1 and 4, got %U", c.Grid[0][0])
	}
	got, ok := c.Color(0, 0)
	if !ok {
		t.Fatal("expected coloured cell")
	}
	want := colorful.Color{R: 0.5, B: 0.5}
	if got.DistanceRgb(want) > 1e-9 {
		t.Errorf("expected blended %v, got %v", want, got)
	}

	c.Set(-1, 0)
	c.Set(100, 100)
	c.Clear()
	if _, ok := c.Color(0, 0); ok {
		t.Error("expected clear to drop colours")
	}
	if strings.ContainsFunc(c.String(), func(r rune) bool { return r != blank && r != '\n' }) {
		t.Error("expected blank canvas after clear")
	}
}

func TestCanvasDrawLine(t *testing.T) {
	c := NewCanvas(10, 3)
	c.DrawLine(0, 0, 19, 0, colorful.Color{G: 1})
	for col := 0; col < 10; col++ {
		if c.Grid[0][col] != rune(blank|0x1|0x8) {
			t.Errorf("expected full top row in cell %d, got %U", col, c.Grid[0][col])
		}
	}
}

func TestCameraProject(t *testing.T) {
	cam := NewCamera(1)
	x, y, _, ok := cam.Project(r3.Vec{}, 100, 60)
	if !ok || x != 50 || y != 30 {
		t.Errorf("expected origin at centre, got %d,%d %v", x, y, ok)
	}

	// +Y is up on screen
	_, yUp, _, _ := cam.Project(r3.Vec{Y: 0.5}, 100, 60)
	if yUp >= 30 {
		t.Errorf("expected point above centre, got y=%d", yUp)
	}

	cam.RotateY(3.141592653589793)
	xr, _, _, _ := cam.Project(r3.Vec{X: 0.5}, 100, 60)
	if xr >= 50 {
		t.Errorf("expected half turn to mirror x, got %d", xr)
	}

	// after the half turn the far side of the world faces the camera
	if _, _, _, ok := cam.Project(r3.Vec{Z: -10}, 100, 60); ok {
		t.Error("expected -Z point behind the turned camera to be hidden")
	}

	cam.Reset()
	if _, _, _, ok := cam.Project(r3.Vec{Z: 10}, 100, 60); ok {
		t.Error("expected point behind the camera to be hidden")
	}
	if _, _, _, ok := cam.Project(r3.Vec{Z: -10}, 100, 60); !ok {
		t.Error("expected point in front of the camera to be visible")
	}
}

func TestDrawWorld(t *testing.T) {
	snap := &snapshot.Snapshot{
		Entities: []snapshot.Drawable{
			{Position: r3.Vec{}, Forward: r3.Vec{Z: -1}, Color: colorful.Color{R: 1}, Alpha: 1},
		},
	}
	c := NewCanvas(40, 20)
	sc := ThemeCyberpunk.Scene(0, false)
	Draw(c, snap, NewCamera(1), ViewWorld, sc)

	got, ok := c.Color(10, 20)
	if !ok {
		t.Fatal("expected entity in centre cell")
	}
	if got.DistanceRgb(colorful.Color{R: 1}) > 1e-9 {
		t.Errorf("expected red centre, got %v", got)
	}

	// a cull ring in the xy plane passes through (0.5, 0)
	snap.Cull = &snapshot.Sphere{Center: r3.Vec{X: 0.5}, Radius: 0.1}
	Draw(c, snap, NewCamera(1), ViewWorld, sc)
	x, y, _, _ := NewCamera(1).Project(r3.Vec{X: 0.6}, c.SubWidth(), c.SubHeight())
	if _, ok := c.Color(y/4, x/2); !ok {
		t.Error("expected cull ring to be drawn")
	}
}

func TestDrawPaletteViews(t *testing.T) {
	snap := &snapshot.Snapshot{Entities: []snapshot.Drawable{
		{Color: colorful.Color{R: 1}, Alpha: 1},
		{Color: colorful.Color{G: 1}, Alpha: 1},
	}}
	for _, v := range []View{ViewRGB, ViewHSV} {
		c := NewCanvas(40, 20)
		Draw(c, snap, NewCamera(1), v, ThemeOcean.Scene(1, false))
		if !strings.ContainsFunc(c.String(), func(r rune) bool { return r != blank && r != '\n' }) {
			t.Errorf("expected %s view to draw something", v)
		}
	}
	if ViewHSV.Next() != ViewWorld {
		t.Error("expected view cycle to wrap")
	}
}

type fakeSource struct {
	snap   *snapshot.Snapshot
	params dynamo.Params
	paused bool
	resets int
	err    error
}

func (f *fakeSource) Latest() *snapshot.Snapshot { return f.snap }
func (f *fakeSource) Paused() bool               { return f.paused }
func (f *fakeSource) TogglePause()               { f.paused = !f.paused }
func (f *fakeSource) Reset()                     { f.resets++ }
func (f *fakeSource) Params() dynamo.Params      { return f.params }
func (f *fakeSource) Err() error                 { return f.err }
func (f *fakeSource) SetParam(name string, v float64) error {
	return f.params.SetParam(name, v)
}

func key(s string) tea.KeyMsg {
	switch s {
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestModelKeys(t *testing.T) {
	src := &fakeSource{params: dynamo.DefaultParams(), snap: &snapshot.Snapshot{}}
	m := NewModel(src, Options{Title: "test", Capacity: 10})

	m = update(m, key(" "))
	if !src.paused {
		t.Error("expected space to pause")
	}
	m = update(m, key("r"))
	if src.resets != 1 {
		t.Errorf("expected 1 reset, got %d", src.resets)
	}

	// tab moves from bound_radius to cruise_speed
	before := src.params.CruiseSpeed
	m = update(m, key("tab"))
	m = update(m, key("up"))
	name := m.paramKeys[m.selected]
	if name != "cruise_speed" {
		t.Fatalf("expected cruise_speed selected, got %s", name)
	}
	want := before + dynamo.Bounds[name].Max/paramSteps
	if diff := src.params.CruiseSpeed - want; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("expected cruise_speed %f, got %f", want, src.params.CruiseSpeed)
	}

	m = update(m, key("v"))
	if m.view != ViewRGB {
		t.Errorf("expected rgb view, got %s", m.view)
	}
	m = update(m, key("t"))
	if m.theme.Name != "retro" {
		t.Errorf("expected retro theme, got %s", m.theme.Name)
	}

	if _, cmd := m.Update(key("q")); cmd == nil {
		t.Error("expected quit command")
	}
}

func TestModelHistory(t *testing.T) {
	src := &fakeSource{params: dynamo.DefaultParams()}
	m := NewModel(src, Options{})

	for step, n := range []int{3, 3, 4} {
		src.snap = &snapshot.Snapshot{Step: uint64(step), Entities: make([]snapshot.Drawable, n)}
		m = update(m, TickMsg{})
	}
	// repeated snapshot is ignored
	m = update(m, TickMsg{})
	if len(m.population) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(m.population))
	}

	src.snap = &snapshot.Snapshot{Step: 0}
	m = update(m, TickMsg{})
	if len(m.population) != 1 {
		t.Errorf("expected history to restart after reset, got %d", len(m.population))
	}

	src.err = errors.New("boom")
	if !strings.Contains(m.View(), "STOPPED") {
		t.Error("expected stopped status in view")
	}
}

func TestModelResize(t *testing.T) {
	m := NewModel(&fakeSource{params: dynamo.DefaultParams()}, Options{})

	tests := []struct {
		width, height int
		wantW, wantH  int
	}{
		{200, 50, 200 - statsWidth - 6, 46},
		{40, 8, 20, 10},
	}
	for _, tt := range tests {
		m = update(m, tea.WindowSizeMsg{Width: tt.width, Height: tt.height})
		if m.canvas.Width != tt.wantW || m.canvas.Height != tt.wantH {
			t.Errorf("expected %dx%d canvas for %dx%d, got %dx%d",
				tt.wantW, tt.wantH, tt.width, tt.height, m.canvas.Width, m.canvas.Height)
		}
	}
}
