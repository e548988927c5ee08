// Package domain holds the stock ledger entities and the pure projections
// derived from the allocation relation. Nothing here performs I/O.
package domain
