//go:build netlib

package nn

import (
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/netlib/blas/netlib"
)

// Building with -tags netlib routes every dense matrix product through the
// system BLAS instead of the pure-Go implementation. Large batch forward
// passes benefit the most; small layers are often faster without it.
func init() {
	blas64.Use(netlib.Implementation{})
}
