package kernels

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var _ Kernel = (*ARD)(nil)

// RBFARD returns amplitude² * exp(-½ Σ_d ((x1_d - x2_d) / ℓ_d)²) for every pair of rows.
//
// lengthscales holds either one value per column or a single value that is shared by
// all columns. Any other length panics, like a gonum shape mismatch.
func RBFARD(X1, X2 mat.Matrix, amplitude float64, lengthscales []float64) *mat.Dense {
	if X2 == nil {
		X2 = X1
	}
	n, d := X1.Dims()
	m, d2 := X2.Dims()
	if d != d2 {
		panic(mat.ErrShape)
	}
	if len(lengthscales) != 1 && len(lengthscales) != d {
		panic(fmt.Sprintf("kernels: %d lengthscales for %d columns", len(lengthscales), d))
	}

	inv := make([]float64, d)
	for c := range inv {
		if len(lengthscales) == 1 {
			inv[c] = 1 / lengthscales[0]
		} else {
			inv[c] = 1 / lengthscales[c]
		}
	}

	amp2 := amplitude * amplitude
	out := mat.NewDense(n, m, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			var dist float64
			for c := 0; c < d; c++ {
				diff := (X1.At(i, c) - X2.At(j, c)) * inv[c]
				dist += diff * diff
			}
			out.Set(i, j, amp2*math.Exp(-0.5*dist))
		}
	}
	return out
}

// ARD is the automatic-relevance-determination squared-exponential kernel.
type ARD struct {
	Amplitude    float64
	Lengthscales []float64
}

// NewARD returns an ARD-RBF kernel; lengthscales follow the rules of RBFARD.
func NewARD(amplitude float64, lengthscales []float64) *ARD {
	return &ARD{Amplitude: amplitude, Lengthscales: lengthscales}
}

// Cov implements Kernel.
func (k *ARD) Cov(X1, X2 mat.Matrix) *mat.Dense {
	return RBFARD(X1, X2, k.Amplitude, k.Lengthscales)
}
