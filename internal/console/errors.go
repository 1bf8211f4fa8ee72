package console

import "fmt"

// DeviceError reports a failure to acquire device resources.
type DeviceError struct {
	Op   string // "load font" or "create batch"
	Font string // Font name requested
	Err  error  // Underlying error
}

func (e *DeviceError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("console: %s %q: %v", e.Op, e.Font, e.Err)
}

// Unwrap returns the underlying error.
func (e *DeviceError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
