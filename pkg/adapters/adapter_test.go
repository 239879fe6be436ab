package adapters

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/epicast/epicast/pkg/epidemic"
)

func TestSeries_Extend(t *testing.T) {
	s := &Series{Times: []float64{0, 2}, Values: []float64{1, 2}}
	s.Extend(4)

	if s.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", s.Len())
	}
	if s.Times[2] != 4 || s.Times[3] != 6 {
		t.Errorf("times = %v, want spacing 2", s.Times)
	}
	if !math.IsNaN(s.Values[2]) || !math.IsNaN(s.Values[3]) {
		t.Errorf("padded values should be NaN: %v", s.Values)
	}

	s.Extend(2)
	if s.Len() != 4 {
		t.Errorf("Extend should never shrink, Len() = %d", s.Len())
	}
}

func scenarioA() *SimulateAdapter {
	return &SimulateAdapter{
		Params: epidemic.Params{
			N: 1000, I0: 5, Repo: 2, InfectiousPeriod: 2,
			Start: 0, End: 32, Dt: 1.0 / 7,
		},
		Weeks:         32,
		ObservedWeeks: 10,
		Seed:          3,
	}
}

func TestSimulateAdapter_Collect(t *testing.T) {
	a := scenarioA()
	s, err := a.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if s.Len() != 32 {
		t.Fatalf("Len() = %d, want 32", s.Len())
	}
	for i, v := range s.Values {
		switch {
		case i < 10 && (math.IsNaN(v) || v < 0):
			t.Errorf("week %d = %v, want observed non-negative", i, v)
		case i >= 10 && !math.IsNaN(v):
			t.Errorf("week %d = %v, want NaN", i, v)
		}
	}

	again, _ := a.Collect(context.Background())
	for i := 0; i < 10; i++ {
		if again.Values[i] != s.Values[i] {
			t.Fatalf("same seed gave different series at week %d", i)
		}
	}
}

func TestSimulateAdapter_FullyObserved(t *testing.T) {
	a := scenarioA()
	a.ObservedWeeks = 0

	s, err := a.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	for i, v := range s.Values {
		if math.IsNaN(v) {
			t.Fatalf("week %d is NaN, want fully observed", i)
		}
	}
}

func TestSimulateAdapter_Errors(t *testing.T) {
	a := scenarioA()
	a.Weeks = 5 // 224 steps do not split into 5 weeks
	if _, err := a.Collect(context.Background()); err == nil {
		t.Error("expected error for uneven aggregation")
	}

	a = scenarioA()
	a.Params.N = 0
	if _, err := a.Collect(context.Background()); err == nil {
		t.Error("expected error for invalid params")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := scenarioA().Collect(ctx); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestReadCSV(t *testing.T) {
	tests := []struct {
		name       string
		data       string
		value      string
		time       string
		wantTimes  []float64
		wantValues []float64
		wantErr    bool
	}{
		{
			name:       "value column only",
			data:       "value\n3\n5\n\n",
			wantTimes:  []float64{0, 1},
			wantValues: []float64{3, 5},
		},
		{
			name:       "named columns with missing",
			data:       "week, cases\n1, 4\n2, NA\n3,\n",
			value:      "cases",
			time:       "week",
			wantTimes:  []float64{1, 2, 3},
			wantValues: []float64{4, math.NaN(), math.NaN()},
		},
		{
			name:       "unnamed extra column",
			data:       "value,\n1,\n2,\n",
			wantTimes:  []float64{0, 1},
			wantValues: []float64{1, 2},
		},
		{name: "missing value column", data: "cases\n1\n", wantErr: true},
		{name: "missing time column", data: "value\n1\n", time: "week", wantErr: true},
		{name: "bad number", data: "value\nabc\n", wantErr: true},
		{name: "ragged row", data: "week,value\n1,2\n3\n", wantErr: true},
		{name: "no rows", data: "value\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ReadCSV(strings.NewReader(tt.data), tt.value, tt.time)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadCSV failed: %v", err)
			}
			if len(s.Values) != len(tt.wantValues) {
				t.Fatalf("values = %v, want %v", s.Values, tt.wantValues)
			}
			for i := range tt.wantValues {
				want, got := tt.wantValues[i], s.Values[i]
				if math.IsNaN(want) != math.IsNaN(got) || (!math.IsNaN(want) && want != got) {
					t.Errorf("values[%d] = %v, want %v", i, got, want)
				}
				if s.Times[i] != tt.wantTimes[i] {
					t.Errorf("times[%d] = %v, want %v", i, s.Times[i], tt.wantTimes[i])
				}
			}
		})
	}
}

func TestFileAdapter_Collect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.csv")
	if err := os.WriteFile(path, []byte("week,cases\n0,2\n1,6\n2,NaN\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	a := &FileAdapter{Path: path, ValueColumn: "cases", TimeColumn: "week"}
	s, err := a.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if s.Len() != 3 || s.Values[1] != 6 || !math.IsNaN(s.Values[2]) {
		t.Errorf("unexpected series: %+v", s)
	}

	missing := &FileAdapter{Path: filepath.Join(t.TempDir(), "nope.csv")}
	if _, err := missing.Collect(context.Background()); err == nil {
		t.Error("expected error for missing file")
	}
}
