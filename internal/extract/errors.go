package extract

import (
	"errors"
	"fmt"
)

// ErrNoViewables is returned when a design has no viewables to extract from.
var ErrNoViewables = errors.New("design has no viewables")

// UpstreamError is a failure of the metadata service or the transport to it.
// It is never retried by the pipeline.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	return &UpstreamError{Op: op, Err: err}
}

// IsUpstream reports whether err came from the metadata service.
func IsUpstream(err error) bool {
	var u *UpstreamError
	return errors.As(err, &u)
}
