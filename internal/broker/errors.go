package broker

import (
	"errors"
	"fmt"
)

// QueryError reports a failed management API call. Error returns the HTTP
// status text (or the transport error) so it can be shown as is.
type QueryError struct {
	Op         string
	URL        string
	StatusCode int
	Status     string
	Err        error
}

func (e *QueryError) Error() string {
	if e.Status != "" {
		return e.Status
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s failed", e.Op)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Message is the text to show a user for err: the bare status text when a
// QueryError is in the chain, err.Error() otherwise.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Error()
	}
	return err.Error()
}
