package kernels

import (
	"gonum.org/v1/gonum/mat"
)

var (
	_ Kernel = (*Sum)(nil)
	_ Kernel = (*columns)(nil)
)

// Sum adds the covariances of independent kernels. Nested sums are flattened.
type Sum struct {
	parts []Kernel
}

// NewSum adds two or more kernels, flattening nested sums.
func NewSum(first, second Kernel, rest ...Kernel) *Sum {
	parts := make([]Kernel, 0, 2+len(rest))
	for _, k := range append([]Kernel{first, second}, rest...) {
		switch k := k.(type) {
		case *Sum:
			parts = append(parts, k.parts...)
		default:
			parts = append(parts, k)
		}
	}
	return &Sum{parts: parts}
}

// Parts returns the flattened summands.
func (k *Sum) Parts() []Kernel {
	return k.parts
}

// Cov returns the elementwise sum of the parts' covariances.
func (k *Sum) Cov(X1, X2 mat.Matrix) *mat.Dense {
	out := k.parts[0].Cov(X1, X2)
	for _, part := range k.parts[1:] {
		out.Add(out, part.Cov(X1, X2))
	}
	return out
}

type columns struct {
	from, to int
	kernel   Kernel
}

// Columns restricts kernel to the feature columns [from, to).
func Columns(from, to int, kernel Kernel) Kernel {
	return &columns{from: from, to: to, kernel: kernel}
}

func (k *columns) Cov(X1, X2 mat.Matrix) *mat.Dense {
	a := sliceCols(X1, k.from, k.to)
	if X2 == nil {
		return k.kernel.Cov(a, nil)
	}
	return k.kernel.Cov(a, sliceCols(X2, k.from, k.to))
}

func sliceCols(X mat.Matrix, from, to int) mat.Matrix {
	r, _ := X.Dims()
	if d, ok := X.(*mat.Dense); ok {
		return d.Slice(0, r, from, to)
	}
	return mat.DenseCopyOf(X).Slice(0, r, from, to)
}
