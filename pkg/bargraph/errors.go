package bargraph

import "fmt"

// RangeError reports an argument outside its hardware-valid range.
type RangeError struct {
	Arg   string
	Value int
	Min   int
	Max   int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s %d out of range [%d, %d]", e.Arg, e.Value, e.Min, e.Max)
}

// WriteError reports a physical write that failed after exhausting the retry
// limit. Err is the last error returned by the bus.
type WriteError struct {
	Attempts int
	Err      error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("bus write failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
