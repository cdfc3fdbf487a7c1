// Package regress fits linear coefficients for a set of expression terms
// against a target field by ordinary least squares.
//
// Each term is evaluated over the dataset and becomes one column of the
// design matrix; rows are the flattened grid points. Columns are scaled to
// unit norm before a QR factorization, and fits whose scaled design matrix
// is rank deficient or ill-conditioned fail with SingularDesignMatrixError
// instead of returning unstable coefficients.
package regress
