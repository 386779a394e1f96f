package dynamo

import (
	"errors"
	"math"
	"sync/atomic"
	"testing"
)

func TestDefaultParamsWithinBounds(t *testing.T) {
	p := DefaultParams()
	if changed := p.Clamp(); len(changed) != 0 {
		t.Errorf("expected defaults inside bounds, clamped %v", changed)
	}
}

func TestClamp(t *testing.T) {
	p := DefaultParams()
	p.MaxAccel = 500
	p.LocalRadius = -1
	p.TimeStep = math.NaN()
	p.CullMaxInterval = 0

	changed := p.Clamp()

	want := []string{"cull_max_interval", "local_radius", "max_accel", "time_step"}
	if len(changed) != len(want) {
		t.Fatalf("expected %v, got %v", want, changed)
	}
	for i := range want {
		if changed[i] != want[i] {
			t.Errorf("expected %s at %d, got %s", want[i], i, changed[i])
		}
	}
	if p.MaxAccel != 100 {
		t.Errorf("expected max_accel 100, got %f", p.MaxAccel)
	}
	if p.LocalRadius != 0 {
		t.Errorf("expected local_radius 0, got %f", p.LocalRadius)
	}
	if p.TimeStep != Bounds["time_step"].Min {
		t.Errorf("expected NaN time_step to clamp to min, got %f", p.TimeStep)
	}
	if p.CullMaxInterval != 1 {
		t.Errorf("expected cull interval 1, got %d", p.CullMaxInterval)
	}
}

func TestSetParam(t *testing.T) {
	tests := []struct {
		name    string
		param   string
		value   float64
		want    float64
		wantErr error
	}{
		{"in range", "turn_rate", 0.5, 0.5, nil},
		{"above max", "drag_factor", 2, 0.99, ErrParameterBounds},
		{"below min", "symmetry", 0, 0.1, ErrParameterBounds},
		{"unknown", "warp_speed", 1, 0, ErrUnknownParam},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			err := p.SetParam(tt.param, tt.value)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr == ErrUnknownParam {
				return
			}
			if got := p.GetParams()[tt.param]; got != tt.want {
				t.Errorf("expected %s=%f, got %f", tt.param, tt.want, got)
			}
		})
	}
}

func TestEveryBoundHasField(t *testing.T) {
	p := DefaultParams()
	got := p.GetParams()
	for _, name := range ParamNames() {
		if _, ok := got[name]; !ok {
			t.Errorf("bound %s has no field", name)
		}
	}
	if len(got) != len(Bounds) {
		t.Errorf("expected %d params, got %d", len(Bounds), len(got))
	}
}

func TestMaxRadius(t *testing.T) {
	p := Params{LocalRadius: 0.2, ReproductionDistanceThreshold: 0.5, FoodDistanceThreshold: 0.1}
	if r := p.MaxRadius(); r != 0.5 {
		t.Errorf("expected 0.5, got %f", r)
	}
}

func TestSimulationError(t *testing.T) {
	err := &SimulationError{Step: 3, Index: 7, Wrapped: ErrNonPositiveMass}
	if !errors.Is(err, ErrNonPositiveMass) {
		t.Error("expected wrapped mass error")
	}
	if err.Error() == "" {
		t.Error("expected message")
	}
}

func TestParallelFor(t *testing.T) {
	for _, n := range []int{0, 1, 7, 100, 1001} {
		var sum atomic.Int64
		seen := make([]int32, n)
		ParallelFor(n, 8, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&seen[i], 1)
				sum.Add(int64(i))
			}
		})
		for i, c := range seen {
			if c != 1 {
				t.Fatalf("n=%d: index %d visited %d times", n, i, c)
			}
		}
		if want := int64(n * (n - 1) / 2); sum.Load() != want {
			t.Errorf("n=%d: expected sum %d, got %d", n, want, sum.Load())
		}
	}
}
