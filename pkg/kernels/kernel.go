// Package kernels provides covariance functions for Gaussian-process residual models.
//
// Kernels are pure: they read feature matrices and hyperparameters and return a
// freshly allocated covariance matrix. They never validate hyperparameters; priors
// reject non-positive or non-finite values before any kernel is evaluated.
//
// Available kernels:
//   - RW:  random walk (Brownian motion) on a time index, variance * min(t, t')
//   - ARD: squared exponential with one length-scale per feature column
//   - Sum: elementwise sum of independent kernels
//
// Columns restricts a kernel to a contiguous range of feature columns, which is how
// the forecast model places the random walk on column 0 and the ARD kernel on the
// remaining covariates.
package kernels

import (
	"gonum.org/v1/gonum/mat"
)

// Kernel computes the cross-covariance between the rows of two feature matrices.
// A nil X2 means the covariance of X1 with itself.
type Kernel interface {
	Cov(X1, X2 mat.Matrix) *mat.Dense
}

// New builds the combined forecast kernel for a feature matrix with cols columns:
// the random walk on column 0 plus, when cols > 1, the ARD kernel on columns 1..cols.
func New(cols int, rwVariance, amplitude float64, lengthscales []float64) Kernel {
	rw := Columns(0, 1, NewRW(rwVariance))
	if cols <= 1 {
		return rw
	}
	return NewSum(rw, Columns(1, cols, NewARD(amplitude, lengthscales)))
}

// Combined evaluates New over all rows of X.
func Combined(X mat.Matrix, rwVariance, amplitude float64, lengthscales []float64) *mat.Dense {
	_, cols := X.Dims()
	return New(cols, rwVariance, amplitude, lengthscales).Cov(X, nil)
}
