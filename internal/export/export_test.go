package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/swarmlab/internal/snapshot"
	"github.com/san-kum/swarmlab/internal/viz"
)

var black = colorful.Color{}

func testSnapshot() *snapshot.Snapshot {
	return &snapshot.Snapshot{
		Step: 12,
		Entities: []snapshot.Drawable{
			{ID: 1, Position: r3.Vec{X: -0.5}, Color: colorful.Color{R: 1}, Alpha: 1, Size: 1},
			{ID: 2, Position: r3.Vec{X: 0.5}, Color: colorful.Color{B: 1}, Alpha: 0.25, Size: 2},
		},
		Food: []snapshot.Drawable{{Position: r3.Vec{Y: 0.5}, Color: colorful.Color{G: 1}, Alpha: 1, Size: 3}},
		Cull: &snapshot.Sphere{Radius: 0.2},
	}
}

func TestCanvasToSVG(t *testing.T) {
	c := viz.NewCanvas(2, 1)
	c.SetColor(0, 0, colorful.Color{R: 1})
	c.Set(3, 3)

	svg := CanvasToSVG(c, 10, black, colorful.Color{G: 1})
	if got := strings.Count(svg, "<circle"); got != 2 {
		t.Errorf("expected 2 dots, got %d", got)
	}
	if !strings.Contains(svg, `fill="#ff0000"`) || !strings.Contains(svg, `fill="#00ff00"`) {
		t.Error("expected coloured and fallback dots")
	}
	if CanvasToSVG(nil, 1, black, black) != "" {
		t.Error("expected empty output for nil canvas")
	}
}

func TestSnapshotToSVG(t *testing.T) {
	svg := SnapshotToSVG(testSnapshot(), viz.NewCamera(1), SnapshotOptions{Width: 200, Height: 200, Background: black})

	if !strings.HasPrefix(svg, "<?xml") || !strings.HasSuffix(svg, "</svg>") {
		t.Fatal("expected a complete svg document")
	}
	// two entities, one food item and the cull outline
	if got := strings.Count(svg, "<circle"); got != 4 {
		t.Errorf("expected 4 circles, got %d", got)
	}
	if !strings.Contains(svg, `fill="#0000ff" fill-opacity="0.25"`) {
		t.Error("expected entity alpha to carry into fill-opacity")
	}
	if !strings.Contains(svg, `stroke="#ff4444"`) {
		t.Error("expected cull outline")
	}
}

func TestSeriesToSVG(t *testing.T) {
	if SeriesToSVG([]Point{{0, 1}}, 100, 50, black, black) != "" {
		t.Error("expected empty output for a single point")
	}
	svg := SeriesToSVG([]Point{{0, 1}, {1, 3}, {2, 2}}, 100, 50, black, colorful.Color{R: 1})
	if got := strings.Count(svg, " L"); got != 2 {
		t.Errorf("expected 2 line segments, got %d", got)
	}
}

func TestSnapshotJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := SnapshotJSON(&buf, "evolution", 3, testSnapshot()); err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	var got SnapshotData
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.Step != 12 || got.Seed != 3 || got.Mode != "evolution" {
		t.Errorf("unexpected header %+v", got)
	}
	if len(got.Entities) != 2 || got.Entities[1].Color != "#0000ff" {
		t.Errorf("unexpected entities %+v", got.Entities)
	}
	if len(got.Food) != 1 {
		t.Errorf("expected 1 food item, got %d", len(got.Food))
	}
}
