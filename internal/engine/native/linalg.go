package native

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// symmetricEigen diagonalizes a symmetric matrix. Eigenvalues come back in
// descending order; vectors[i] is the unit eigenvector for values[i]. A
// factorization failure yields zero values with the standard basis.
func symmetricEigen(a mat.Symmetric) (values []float64, vectors [][]float64) {
	n := a.SymmetricDim()
	values = make([]float64, n)
	vectors = make([][]float64, n)

	var eig mat.EigenSym
	if !eig.Factorize(a, true) {
		for i := range vectors {
			vectors[i] = make([]float64, n)
			vectors[i][i] = 1
		}
		return values, vectors
	}
	raw := eig.Values(nil)
	var ev mat.Dense
	eig.VectorsTo(&ev)

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return raw[order[i]] > raw[order[j]] })
	for k, idx := range order {
		values[k] = raw[idx]
		vectors[k] = mat.Col(nil, idx, &ev)
	}
	return values, vectors
}

// centerRows stacks rows into a matrix and subtracts the column means.
func centerRows(rows [][]float64) *mat.Dense {
	if len(rows) == 0 {
		return nil
	}
	m := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, row := range rows {
		m.SetRow(i, row)
	}
	_, dims := m.Dims()
	for j := 0; j < dims; j++ {
		col := mat.Col(nil, j, m)
		floats.AddConst(-floats.Sum(col)/float64(len(rows)), col)
		m.SetCol(j, col)
	}
	return m
}

// gram returns C*C^T/(n-1). Its nonzero eigenvalues match the feature
// covariance C^T*C/(n-1), which keeps the eigen problem at n x n.
func gram(centered *mat.Dense) *mat.SymDense {
	n, _ := centered.Dims()
	var g mat.SymDense
	g.SymOuterK(1/math.Max(1, float64(n-1)), centered)
	return &g
}
