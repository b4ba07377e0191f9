package market

// Progress counts items handled so far, successful or not.
type Progress struct {
	Processed int `json:"processed"`
	Total     int `json:"total"`
}

// ItemError is a failure of one element in a TransformEach pass.
type ItemError struct {
	Index int
	Err   error
}

// Transformed is the outcome of TransformEach.
type Transformed[T any] struct {
	Items  []T
	Failed int
	Errors []ItemError
}

// TransformEach applies fn to every item in order. Failing items are recorded
// and dropped; the pass always continues. onProgress, if set, is called after
// every item with a monotonically increasing Processed count.
func TransformEach[S, T any](items []S, fn func(S) (T, error), onProgress func(Progress)) Transformed[T] {
	out := Transformed[T]{Items: make([]T, 0, len(items))}
	total := len(items)

	for i, item := range items {
		v, err := fn(item)
		if err != nil {
			out.Failed++
			out.Errors = append(out.Errors, ItemError{Index: i, Err: err})
		} else {
			out.Items = append(out.Items, v)
		}
		if onProgress != nil {
			onProgress(Progress{Processed: i + 1, Total: total})
		}
	}

	return out
}
