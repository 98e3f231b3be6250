package trello

import (
	"errors"
	"fmt"
)

// maxErrorBody caps how much of a failed response body is kept on the error
const maxErrorBody = 512

// RemoteError reports a failed call to the remote service: a transport
// failure, a non-2xx status, or a payload that could not be decoded.
type RemoteError struct {
	Op         string
	Method     string
	Path       string
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("trello %s: %s %s: %v", e.Op, e.Method, e.Path, e.Err)
	case e.Body != "":
		return fmt.Sprintf("trello %s: %s %s: status %d: %s", e.Op, e.Method, e.Path, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("trello %s: %s %s: status %d", e.Op, e.Method, e.Path, e.StatusCode)
	}
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsRemote reports whether err is or wraps a *RemoteError.
func IsRemote(err error) bool {
	var remoteErr *RemoteError
	return errors.As(err, &remoteErr)
}
