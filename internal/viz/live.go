package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/swarmlab/internal/dynamo"
	"github.com/san-kum/swarmlab/internal/snapshot"
)

const (
	defaultWidth    = 80
	defaultHeight   = 24
	statsWidth      = 52
	historyCapacity = 600
	paramWindow     = 8
	paramSteps      = 100
)

// Source is the running simulation as the viewer sees it. Reads come from
// published snapshots; every write is a request the simulation applies
// between steps.
type Source interface {
	Latest() *snapshot.Snapshot
	Paused() bool
	TogglePause()
	Reset()
	Params() dynamo.Params
	SetParam(name string, value float64) error
	Err() error
}

type Options struct {
	Title       string
	Capacity    int
	BoundRadius float64
	// Headings draws a short line along each agent's forward axis.
	Headings bool
	Theme    string
	FPS      int
}

type TickMsg time.Time

// Model is the bubbletea model of the live viewer. It never touches the
// simulation state directly.
type Model struct {
	src   Source
	opts  Options
	theme Theme
	st    styles

	canvas *Canvas
	camera *Camera
	view   View

	paramKeys []string
	selected  int

	lastStep   uint64
	seen       bool
	population []float64
	food       []float64

	notice   string
	showHelp bool
}

func NewModel(src Source, opts Options) Model {
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	if opts.BoundRadius <= 0 {
		opts.BoundRadius = src.Params().BoundRadius
	}
	theme := GetTheme(opts.Theme)
	return Model{
		src:        src,
		opts:       opts,
		theme:      theme,
		st:         newStyles(theme),
		canvas:     NewCanvas(defaultWidth, defaultHeight),
		camera:     NewCamera(opts.BoundRadius),
		paramKeys:  dynamo.ParamNames(),
		population: make([]float64, 0, historyCapacity),
		food:       make([]float64, 0, historyCapacity),
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(m.opts.FPS), func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd { return m.tick() }

// Update handles input and pulls the newest snapshot on every tick.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		w := max(20, msg.Width-statsWidth-6)
		h := max(10, msg.Height-4)
		if w != m.canvas.Width || h != m.canvas.Height {
			m.canvas = NewCanvas(w, h)
		}
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.src.TogglePause()
		case "r":
			m.src.Reset()
			m.notice = "reset"
		case "tab":
			m.selected = (m.selected + 1) % len(m.paramKeys)
		case "shift+tab":
			m.selected = (m.selected + len(m.paramKeys) - 1) % len(m.paramKeys)
		case "up", "k":
			m.adjustParam(1)
		case "down", "j":
			m.adjustParam(-1)
		case "t":
			m.theme = NextTheme(m.theme)
			m.st = newStyles(m.theme)
		case "v":
			m.view = m.view.Next()
		case "x":
			m.camera.RotateX(0.1)
		case "X":
			m.camera.RotateX(-0.1)
		case "y":
			m.camera.RotateY(0.1)
		case "Y":
			m.camera.RotateY(-0.1)
		case "+", "=":
			m.camera.ZoomIn()
		case "-", "_":
			m.camera.ZoomOut()
		case "0":
			m.camera.Reset()
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		m.observe(m.src.Latest())
		return m, m.tick()
	}
	return m, nil
}

// observe records history once per simulation step. A step number going
// backwards means the run was reset.
func (m *Model) observe(snap *snapshot.Snapshot) {
	if snap == nil {
		return
	}
	if m.seen && snap.Step == m.lastStep {
		return
	}
	if m.seen && snap.Step < m.lastStep {
		m.population = m.population[:0]
		m.food = m.food[:0]
	}
	m.seen = true
	m.lastStep = snap.Step
	m.population = pushCapped(m.population, float64(len(snap.Entities)))
	m.food = pushCapped(m.food, float64(len(snap.Food)))
}

func pushCapped(xs []float64, v float64) []float64 {
	if len(xs) >= historyCapacity {
		copy(xs, xs[1:])
		xs = xs[:len(xs)-1]
	}
	return append(xs, v)
}

// adjustParam moves the selected parameter by one hundredth of its range.
func (m *Model) adjustParam(dir float64) {
	name := m.paramKeys[m.selected]
	b := dynamo.Bounds[name]
	p := m.src.Params()
	cur := p.GetParams()[name]
	if err := m.src.SetParam(name, cur+dir*(b.Max-b.Min)/paramSteps); err != nil {
		m.notice = err.Error()
		return
	}
	m.notice = ""
}

func (m Model) status() string {
	switch {
	case m.src.Err() != nil:
		return m.st.failed.Render("STOPPED: " + m.src.Err().Error())
	case m.src.Paused():
		return m.st.paused.Render("PAUSED")
	default:
		return m.st.running.Render("RUNNING")
	}
}

// View renders the canvas and the stats panel side by side.
func (m Model) View() string {
	snap := m.src.Latest()
	Draw(m.canvas, snap, m.camera, m.view, m.theme.Scene(m.opts.BoundRadius, m.opts.Headings))
	canvasView := m.st.canvas.Render(m.canvas.Render(m.theme.Text))

	var s strings.Builder
	title := m.opts.Title
	if title == "" {
		title = "swarmlab"
	}
	s.WriteString(m.st.header.Render(strings.ToUpper(title)) + "\n")
	s.WriteString(m.status() + "\n")

	if len(m.population) > 1 {
		chart := asciigraph.Plot(m.population, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Population"))
		s.WriteString(m.st.graph.Render(chart) + "\n")
	}

	row := func(label, value string) {
		s.WriteString(m.st.label.Render(label) + m.st.value.Render(value) + "\n")
	}
	if snap != nil {
		pop := len(snap.Entities)
		row("Step", fmt.Sprintf("%d", snap.Step))
		if m.opts.Capacity > 0 {
			row("Population", fmt.Sprintf("%d/%d ", pop, m.opts.Capacity)+
				m.st.ProgressBar(float64(pop)/float64(m.opts.Capacity), 12))
		} else {
			row("Population", fmt.Sprintf("%d", pop))
		}
		if len(snap.Food) > 0 || len(m.food) > 0 {
			row("Food", fmt.Sprintf("%-5d ", len(snap.Food))+m.st.Sparkline(m.food, 16))
		}
		t := snap.Totals
		if t.Births+t.Deaths+t.Culled > 0 {
			row("Births", fmt.Sprintf("%d (%d rejected)", t.Births, t.Rejected))
			row("Deaths", fmt.Sprintf("%d (%d culled)", t.Deaths, t.Culled))
			row("Eaten", fmt.Sprintf("%d", t.Eaten))
		}
	}
	row("View", m.view.String())
	row("Theme", m.theme.Name)

	s.WriteString("\nPARAMETERS\n")
	vals := m.src.Params()
	current := vals.GetParams()
	start := max(0, min(m.selected-paramWindow/2, len(m.paramKeys)-paramWindow))
	end := min(len(m.paramKeys), start+paramWindow)
	for i := start; i < end; i++ {
		k := m.paramKeys[i]
		b := dynamo.Bounds[k]
		val := current[k]
		ratio := 0.0
		if b.Max > b.Min {
			ratio = (val - b.Min) / (b.Max - b.Min)
		}
		barWidth := 10
		filled := max(0, min(barWidth, int(ratio*float64(barWidth))))
		bar := "[" + strings.Repeat("=", filled) + strings.Repeat("-", barWidth-filled) + "]"
		line := fmt.Sprintf("%-20s %s %.4g", truncate(k, 20), bar, val)
		if i == m.selected {
			s.WriteString(m.st.activeParam.Render("> "+line) + "\n")
		} else {
			s.WriteString("  " + m.st.label.UnsetWidth().Render(line) + "\n")
		}
	}
	if m.notice != "" {
		s.WriteString(m.st.paused.Render(m.notice) + "\n")
	}
	s.WriteString(m.st.help.Render("─────────────────────\nSP:Pause R:Reset Q:Quit\nT:Theme V:View ?:Help\nTab:Param ↑↓:Tune"))

	statsView := m.st.stats.Render(s.String())
	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsView)
	if m.showHelp {
		return helpText + "\n\n" + mainView
	}
	return mainView
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

const helpText = `
╔══════════════════════════════════════╗
║          KEYBOARD SHORTCUTS          ║
╠══════════════════════════════════════╣
║  Space    - Freeze/resume stepping   ║
║  R        - Reset to the run seed    ║
║  Q        - Quit                     ║
║  Tab      - Next parameter           ║
║  Up/K     - Raise parameter          ║
║  Down/J   - Lower parameter          ║
║  V        - World / RGB / HSV view   ║
║  X Y      - Rotate camera            ║
║  + - 0    - Zoom, reset camera       ║
║  T        - Cycle themes             ║
║  ?        - Toggle this help         ║
╚══════════════════════════════════════╝`
