package gp

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/mat"

	"github.com/epicast/epicast/pkg/kernels"
)

// Blocks is the partition of the full covariance at the split point.
type Blocks struct {
	KOO *mat.SymDense // observed × observed, noise on the diagonal
	KOT *mat.Dense    // observed × unobserved
	KTT *mat.SymDense // unobserved × unobserved
}

// Conditional is the GP posterior over the unobserved residuals.
type Conditional struct {
	Blocks
	L     *mat.TriDense // lower Cholesky factor of KOO + jitter·I
	Alpha []float64     // (KOO + jitter·I)⁻¹ centered y
	Mean  []float64     // KOTᵀ alpha
	Cov   *mat.SymDense // KTT - VᵀV with L V = KOT

	jitter float64
}

// Covariance evaluates the combined kernel over every row of X.
func (c *Config) Covariance(p Params) *mat.SymDense {
	K := kernels.Combined(c.X, p.RWVar, p.Amp, p.Leng)
	n, _ := K.Dims()
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, K.At(i, j))
		}
	}
	return sym
}

// Partition slices the full covariance into observed and unobserved blocks
// and inflates the observed diagonal by noise.
func (c *Config) Partition(p Params) Blocks {
	K := c.Covariance(p)
	nobs, m := c.Nobs, c.Horizon()

	koo := mat.NewSymDense(nobs, nil)
	koo.CopySym(K.SliceSym(0, nobs))
	for i := 0; i < nobs; i++ {
		koo.SetSym(i, i, koo.At(i, i)+p.Noise)
	}

	ktt := mat.NewSymDense(m, nil)
	ktt.CopySym(K.SliceSym(nobs, nobs+m))

	kot := mat.NewDense(nobs, m, nil)
	for i := 0; i < nobs; i++ {
		for j := 0; j < m; j++ {
			kot.Set(i, j, K.At(i, nobs+j))
		}
	}

	return Blocks{KOO: koo, KOT: kot, KTT: ktt}
}

// Condition computes the GP conditional of the unobserved residuals for one
// hyperparameter draw. It is the only path from hyperparameters to the
// conditional, used by both the sampler and posterior prediction.
func (c *Config) Condition(p Params) (*Conditional, error) {
	return ConditionBlocks(c.Partition(p), c.CenteredY, c.Jitter)
}

// ConditionBlocks computes the conditional mean and covariance from explicit
// blocks using only triangular solves against the Cholesky factor of KOO.
func ConditionBlocks(b Blocks, centeredY []float64, jitter float64) (*Conditional, error) {
	nobs := b.KOO.SymmetricDim()
	if len(centeredY) != nobs {
		return nil, fmt.Errorf("%w: %d residuals for a %d×%d observed block", ErrInvalidConfig, len(centeredY), nobs, nobs)
	}
	_, m := b.KOT.Dims()

	var chol mat.Cholesky
	if ok := chol.Factorize(addDiag(b.KOO, jitter)); !ok {
		return nil, fmt.Errorf("%w: observed block", ErrNotPositiveDefinite)
	}
	L := mat.NewTriDense(nobs, mat.Lower, nil)
	chol.LTo(L)
	raw := L.RawTriangular()

	// alpha = L⁻ᵀ L⁻¹ y
	alpha := make([]float64, nobs)
	copy(alpha, centeredY)
	x := blas64.Vector{N: nobs, Data: alpha, Inc: 1}
	blas64.Trsv(blas.NoTrans, raw, x)
	blas64.Trsv(blas.Trans, raw, x)

	mean := mat.NewVecDense(m, nil)
	mean.MulVec(b.KOT.T(), mat.NewVecDense(nobs, alpha))

	V := mat.DenseCopyOf(b.KOT)
	blas64.Trsm(blas.Left, blas.NoTrans, 1, raw, V.RawMatrix())

	cov := mat.NewSymDense(m, nil)
	cov.SymRankK(b.KTT, -1, V.T())

	return &Conditional{
		Blocks: b,
		L:      L,
		Alpha:  alpha,
		Mean:   mean.RawVector().Data,
		Cov:    cov,
		jitter: jitter,
	}, nil
}

func addDiag(a mat.Symmetric, v float64) *mat.SymDense {
	n := a.SymmetricDim()
	out := mat.NewSymDense(n, nil)
	out.CopySym(a)
	for i := 0; i < n; i++ {
		out.SetSym(i, i, out.At(i, i)+v)
	}
	return out
}
