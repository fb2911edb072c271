package vectorstore

import "errors"

// Sentinel errors. Callers check them with errors.Is; messages carry detail.
var (
	// ErrInvalidConfig reports a bad dimension or unknown similarity metric
	// at construction time.
	ErrInvalidConfig = errors.New("vectorstore: invalid configuration")
	// ErrDimensionMismatch reports a query or inserted vector whose length
	// disagrees with the store's dimension. The store is left unchanged.
	ErrDimensionMismatch = errors.New("vectorstore: dimension mismatch")
	// ErrCorruptStore reports persisted data that fails consistency checks
	// on load (version, dimension, or count disagreement between blocks).
	ErrCorruptStore = errors.New("vectorstore: corrupt store")
)
