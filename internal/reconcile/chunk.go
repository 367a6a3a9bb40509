package reconcile

// Chunk splits items into consecutive batches of at most size elements. The
// batches share the backing array of items.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	if len(items) == 0 {
		return nil
	}
	batches := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end:end])
	}
	return batches
}
