package kernels

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

var _ Kernel = (*RW)(nil)

// RandomWalk returns variance * min(X_i, X2_j) for every pair of rows, reading
// column 0 of both inputs. It is the covariance of a zero-mean random walk observed
// at two time indices, so its variance grows along the diagonal.
func RandomWalk(X, X2 mat.Matrix, variance float64) *mat.Dense {
	if X2 == nil {
		X2 = X
	}
	n, _ := X.Dims()
	m, _ := X2.Dims()

	out := mat.NewDense(n, m, nil)
	for i := 0; i < n; i++ {
		xi := X.At(i, 0)
		for j := 0; j < m; j++ {
			out.Set(i, j, variance*math.Min(xi, X2.At(j, 0)))
		}
	}
	return out
}

// RW is the random-walk kernel.
type RW struct {
	Variance float64
}

// NewRW returns a random-walk kernel with the given variance.
func NewRW(variance float64) *RW {
	return &RW{Variance: variance}
}

// Cov implements Kernel.
func (k *RW) Cov(X1, X2 mat.Matrix) *mat.Dense {
	return RandomWalk(X1, X2, k.Variance)
}
