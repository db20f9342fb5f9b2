package recording

import "errors"

var (
	ErrNoDevice         = errors.New("no capture device available")
	ErrPermissionDenied = errors.New("capture permission denied")
	ErrCaptureActive    = errors.New("capture already in progress")
)

// CapabilityError reports that audio capture could not begin.
type CapabilityError struct {
	Err error
}

func (e *CapabilityError) Error() string {
	return "audio capture unavailable: " + e.Err.Error()
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}
