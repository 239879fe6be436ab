package bands

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestCompute(t *testing.T) {
	// three time points: constant, ascending draws, shuffled draws
	ens := mat.NewDense(5, 3, []float64{
		7, 1, 30,
		7, 2, 10,
		7, 3, 50,
		7, 4, 20,
		7, 5, 40,
	})

	b, err := Compute(ens, nil)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if len(b.Quantiles) != len(DefaultLevels) {
		t.Fatalf("got %d bands, want %d", len(b.Quantiles), len(DefaultLevels))
	}

	for k := range b.Levels {
		if b.Quantiles[k][0] != 7 {
			t.Errorf("constant column band %v = %v, want 7", b.Levels[k], b.Quantiles[k][0])
		}
	}

	for j := 0; j < 3; j++ {
		for k := 1; k < len(b.Levels); k++ {
			if b.Quantiles[k][j] < b.Quantiles[k-1][j] {
				t.Errorf("column %d: band %v below band %v", j, b.Levels[k], b.Levels[k-1])
			}
		}
	}

	if b.Mean[1] != 3 || b.Mean[2] != 30 {
		t.Errorf("Mean = %v, want [7 3 30]", b.Mean)
	}

	// column 2 is column 1 scaled by 10 once sorted
	for k := range b.Levels {
		if math.Abs(b.Quantiles[k][2]-10*b.Quantiles[k][1]) > 1e-9 {
			t.Errorf("band %v not invariant to draw order", b.Levels[k])
		}
	}
}

func TestCompute_Errors(t *testing.T) {
	if _, err := Compute(nil, nil); !errors.Is(err, ErrEmptyEnsemble) {
		t.Errorf("nil ensemble: got %v, want ErrEmptyEnsemble", err)
	}
	if _, err := Compute(mat.NewDense(2, 2, nil), []float64{1.5}); err == nil {
		t.Error("expected error for out-of-range level")
	}
}

func TestBands_LevelAndLabeled(t *testing.T) {
	b, err := Compute(mat.NewDense(2, 2, []float64{1, 2, 3, 4}), []float64{0.5, 0.975})
	if err != nil {
		t.Fatal(err)
	}
	if got := b.Level(0.5); len(got) != 2 {
		t.Errorf("Level(0.5) = %v", got)
	}
	if got := b.Level(0.1); got != nil {
		t.Errorf("Level(0.1) = %v, want nil", got)
	}

	labeled := b.Labeled()
	if _, ok := labeled["p97.5"]; !ok {
		t.Errorf("Labeled() keys = %v, want p97.5", labeled)
	}
}
