package listener

import "github.com/chtzvt/forestbatch/internal/batch"

// NullListener discards every batch. Useful for benchmarking the engine
// without listener overhead. It is registered as "null"; New does not
// fall back to it for an unknown name.
func NullListener(_ map[string]interface{}) (SuccessListener, error) {
	return func(batch.Batch) error { return nil }, nil
}

func init() {
	Register("null", NullListener)
}
