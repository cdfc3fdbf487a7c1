// Package testutil provides deterministic fixtures shared by package tests:
// synthetic datasets with derived fields and a constant run id generator.
package testutil
