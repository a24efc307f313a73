// Package resource defines the tri-state result value shared by every
// asynchronous data source in the application: a consumer always knows
// whether a value is still loading, arrived, or failed, possibly with the
// last good value retained for degraded display.
package resource

// Status is the active tag of a Resource.
type Status int

const (
	StatusLoading Status = iota
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// Resource is an immutable tri-state wrapper. Exactly one status is active;
// a new value replaces the old one, it is never mutated in place.
type Resource[T any] struct {
	status   Status
	value    T
	hasValue bool
	message  string
}

// Loading is the initial state of every data source.
func Loading[T any]() Resource[T] {
	return Resource[T]{status: StatusLoading}
}

// Success wraps a successfully produced value.
func Success[T any](v T) Resource[T] {
	return Resource[T]{status: StatusSuccess, value: v, hasValue: true}
}

// Error wraps a failure with no usable value.
func Error[T any](msg string) Resource[T] {
	return Resource[T]{status: StatusError, message: msg}
}

// ErrorWith wraps a failure while retaining the last known good value.
func ErrorWith[T any](msg string, last T) Resource[T] {
	return Resource[T]{status: StatusError, value: last, hasValue: true, message: msg}
}

func (r Resource[T]) Status() Status { return r.status }

// Value returns the carried value and whether one is present. An Error
// resource may carry the last value seen before the failure.
func (r Resource[T]) Value() (T, bool) {
	return r.value, r.hasValue
}

// Message returns the failure description; empty unless StatusError.
func (r Resource[T]) Message() string { return r.message }

func (r Resource[T]) IsLoading() bool { return r.status == StatusLoading }
func (r Resource[T]) IsSuccess() bool { return r.status == StatusSuccess }
func (r Resource[T]) IsError() bool   { return r.status == StatusError }
