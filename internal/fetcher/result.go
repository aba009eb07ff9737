package fetcher

// Result represents the outcome of a single source call.
// It is either Ok (Err is empty, Value holds the payload) or failed
// (Err holds a human-readable reason and Value is the zero value).
// Results are produced inside worker goroutines and handed back to the
// coordinator, which assembles them into the evidence bundle.
type Result[T any] struct {
	Value T
	Err   string
}

// Ok wraps a successful payload
func Ok[T any](value T) Result[T] {
	return Result[T]{Value: value}
}

// Fail wraps an error. A nil error is recorded as an unknown failure so
// that a failed result can never be mistaken for an empty success.
func Fail[T any](err error) Result[T] {
	if err == nil {
		err = NewUnknownError("source returned no data and no error")
	}
	return Result[T]{Err: Reason(err)}
}

// From builds a Result from the usual (value, error) pair
func From[T any](value T, err error) Result[T] {
	if err != nil {
		return Fail[T](err)
	}
	return Ok(value)
}

// IsOk reports whether the call succeeded
func (r Result[T]) IsOk() bool {
	return r.Err == ""
}
