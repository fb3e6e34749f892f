// Package lambda implements the LAMBDA (Least-squares AMBiguity
// Decorrelation Adjustment) method for integer ambiguity resolution: LD
// factorization, Gauss/permutation decorrelation, and the MLAMBDA
// shrinking-ellipsoid integer search.
//
// Grounded on FengXuebin-gnssgo/src/lamda.go, ported from flat column-major
// arrays to gonum.org/v1/gonum/mat, per:
//
//	P.J.G. Teunissen, "The least-squares ambiguity decorrelation adjustment:
//	a method for fast GPS ambiguity estimation", J.Geodesy 70, 1995.
//	X.-W. Chang, X. Yang, T. Zhou, "MLAMBDA: A modified LAMBDA method for
//	integer least-squares estimation", J.Geodesy 79, 2005.
package lambda

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// maxSearchLoops bounds the MLAMBDA search, matching LOOPMAX.
const maxSearchLoops = 10000

// ErrSearchOverflow is returned when the integer search exceeds
// maxSearchLoops without terminating, matching Search's info=-1 path.
var ErrSearchOverflow = errors.New("lambda: search loop count overflow")

// ErrNotPositiveDefinite is returned when the float covariance matrix
// fails LD factorization, matching LD's info=-1 path.
var ErrNotPositiveDefinite = errors.New("lambda: covariance is not positive definite")

func sign(x float64) float64 {
	if x <= 0 {
		return -1
	}
	return 1
}

func roundHalfAwayFromZero(x float64) float64 {
	t := math.Trunc(x)
	if math.Abs(x-t) >= 0.5 {
		return t + math.Copysign(1, x)
	}
	return t
}

// ldFactorize computes the LD decomposition Q = L'*diag(D)*L of a
// symmetric positive-definite covariance matrix Q, matching LD.
func ldFactorize(Q *mat.Dense) (L *mat.Dense, D []float64, err error) {
	n, _ := Q.Dims()
	A := mat.DenseCopyOf(Q)
	L = mat.NewDense(n, n, nil)
	D = make([]float64, n)

	for i := n - 1; i >= 0; i-- {
		D[i] = A.At(i, i)
		if D[i] <= 0 {
			return nil, nil, ErrNotPositiveDefinite
		}
		a := math.Sqrt(D[i])
		for j := 0; j <= i; j++ {
			L.Set(i, j, A.At(i, j)/a)
		}
		for j := 0; j <= i-1; j++ {
			for k := 0; k <= j; k++ {
				A.Set(j, k, A.At(j, k)-L.At(i, k)*L.At(i, j))
			}
		}
		for j := 0; j <= i; j++ {
			L.Set(i, j, L.At(i, j)/L.At(i, i))
		}
	}
	return L, D, nil
}

// integerGaussTransform applies the integer Gauss transformation to
// decorrelate L(i,j), matching Gauss.
func integerGaussTransform(L, Z *mat.Dense, i, j int) {
	n, _ := L.Dims()
	mu := int(roundHalfAwayFromZero(L.At(i, j)))
	if mu == 0 {
		return
	}
	muF := float64(mu)
	for k := i; k < n; k++ {
		L.Set(k, j, L.At(k, j)-muF*L.At(k, i))
	}
	for k := 0; k < n; k++ {
		Z.Set(k, j, Z.At(k, j)-muF*Z.At(k, i))
	}
}

// permute swaps columns j and j+1 of the decorrelation basis, matching
// Perm.
func permute(L *mat.Dense, D []float64, j int, del float64, Z *mat.Dense) {
	n, _ := L.Dims()
	eta := D[j] / del
	lam := D[j+1] * L.At(j+1, j) / del
	D[j] = eta * D[j+1]
	D[j+1] = del

	for k := 0; k <= j-1; k++ {
		a0 := L.At(j, k)
		a1 := L.At(j+1, k)
		L.Set(j, k, -L.At(j+1, j)*a0+a1)
		L.Set(j+1, k, eta*a0+lam*a1)
	}
	L.Set(j+1, j, lam)
	for k := j + 2; k < n; k++ {
		a, b := L.At(k, j), L.At(k, j+1)
		L.Set(k, j, b)
		L.Set(k, j+1, a)
	}
	for k := 0; k < n; k++ {
		a, b := Z.At(k, j), Z.At(k, j+1)
		Z.Set(k, j, b)
		Z.Set(k, j+1, a)
	}
}

// reduce performs the LAMBDA decorrelation z=Z'*a, Qz=Z'*Q*Z=L'*diag(D)*L,
// matching Reduction.
func reduce(L *mat.Dense, D []float64, Z *mat.Dense) {
	n, _ := L.Dims()
	j := n - 2
	k := n - 2
	for j >= 0 {
		if j <= k {
			for i := j + 1; i < n; i++ {
				integerGaussTransform(L, Z, i, j)
			}
		}
		del := D[j] + L.At(j+1, j)*L.At(j+1, j)*D[j+1]
		if del+1e-6 < D[j+1] {
			permute(L, D, j, del, Z)
			k = j
			j = n - 2
		} else {
			j--
		}
	}
}

// search performs the MLAMBDA shrinking-ellipsoid integer search for the m
// best candidate integer vectors, matching Search. zs is the decorrelated
// float ambiguity vector; zn receives the m candidates as columns; s
// receives their squared residuals.
func search(L *mat.Dense, D, zs []float64, m int) (zn *mat.Dense, s []float64, err error) {
	n := len(zs)
	zn = mat.NewDense(n, m, nil)
	s = make([]float64, m)

	S := mat.NewDense(n, n, nil)
	dist := make([]float64, n)
	zb := make([]float64, n)
	z := make([]float64, n)
	step := make([]float64, n)

	k := n - 1
	dist[k] = 0
	zb[k] = zs[k]
	z[k] = roundHalfAwayFromZero(zb[k])
	y := zb[k] - z[k]
	step[k] = sign(y)

	maxdist := 1e99
	nn := 0
	imax := 0
	c := 0
	for ; c < maxSearchLoops; c++ {
		newdist := dist[k] + y*y/D[k]
		if newdist < maxdist {
			if k != 0 {
				k--
				dist[k] = newdist
				for i := 0; i <= k; i++ {
					S.Set(k, i, S.At(k+1, i)+(z[k+1]-zb[k+1])*L.At(k+1, i))
				}
				zb[k] = zs[k] + S.At(k, k)
				z[k] = roundHalfAwayFromZero(zb[k])
				y = zb[k] - z[k]
				step[k] = sign(y)
			} else {
				if nn < m {
					if nn == 0 || newdist > s[imax] {
						imax = nn
					}
					for i := 0; i < n; i++ {
						zn.Set(i, nn, z[i])
					}
					s[nn] = newdist
					nn++
				} else {
					if newdist < s[imax] {
						for i := 0; i < n; i++ {
							zn.Set(i, imax, z[i])
						}
						s[imax] = newdist
						imax = 0
						for i := 0; i < m; i++ {
							if s[imax] < s[i] {
								imax = i
							}
						}
					}
					maxdist = s[imax]
				}
				z[0] += step[0]
				y = zb[0] - z[0]
				step[0] = -step[0] - sign(step[0])
			}
		} else {
			if k == n-1 {
				break
			}
			k++
			z[k] += step[k]
			y = zb[k] - z[k]
			step[k] = -step[k] - sign(step[k])
		}
	}

	for i := 0; i < m-1; i++ {
		for j := i + 1; j < m; j++ {
			if s[i] < s[j] {
				continue
			}
			s[i], s[j] = s[j], s[i]
			for k := 0; k < n; k++ {
				a, b := zn.At(k, i), zn.At(k, j)
				zn.Set(k, i, b)
				zn.Set(k, j, a)
			}
		}
	}

	if c >= maxSearchLoops {
		return nil, nil, ErrSearchOverflow
	}
	return zn, s, nil
}

// Resolve performs integer least-squares ambiguity estimation: LD
// factorization, LAMBDA reduction, and an MLAMBDA search for the m best
// fixed candidates. a is the float ambiguity vector (n x 1); Q is its
// covariance (n x n). Returns the m candidate integer vectors (as columns
// of F, n x m) and their squared residuals s, best (smallest residual)
// first. Matches Lambda.
func Resolve(a []float64, Q *mat.Dense, m int) (F *mat.Dense, s []float64, err error) {
	n := len(a)
	if n == 0 || m <= 0 {
		return nil, nil, errors.New("lambda: invalid dimensions")
	}

	L, D, err := ldFactorize(Q)
	if err != nil {
		return nil, nil, err
	}

	Z := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		Z.Set(i, i, 1)
	}
	reduce(L, D, Z)

	aVec := mat.NewVecDense(n, a)
	var zVec mat.VecDense
	zVec.MulVec(Z.T(), aVec)

	zn, s, err := search(L, D, zVec.RawVector().Data, m)
	if err != nil {
		return nil, nil, err
	}

	// F = Z' \ zn  (solve Z'*F = zn for F)
	var Zt mat.Dense
	Zt.CloneFrom(Z.T())
	F = mat.NewDense(n, m, nil)
	var ZtInv mat.Dense
	if err := ZtInv.Inverse(&Zt); err != nil {
		return nil, nil, err
	}
	F.Mul(&ZtInv, zn)

	return F, s, nil
}

// Reduction exposes the LAMBDA decorrelation transform alone (Z such that
// Z'*Q*Z is a well-conditioned LD basis), matching LambdaReduction.
func Reduction(Q *mat.Dense) (Z *mat.Dense, err error) {
	n, _ := Q.Dims()
	L, D, err := ldFactorize(Q)
	if err != nil {
		return nil, err
	}
	Z = mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		Z.Set(i, i, 1)
	}
	reduce(L, D, Z)
	return Z, nil
}

// Search exposes the MLAMBDA integer search alone, assuming a is already
// decorrelated, matching LambdaSearch.
func Search(a []float64, Q *mat.Dense, m int) (F *mat.Dense, s []float64, err error) {
	L, D, err := ldFactorize(Q)
	if err != nil {
		return nil, nil, err
	}
	return search(L, D, a, m)
}
