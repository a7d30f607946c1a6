package flickr

import (
	"fmt"
)

/*
TransportError means the request got no response at all: DNS failure,
refused connection, timeout.
*/
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("no response from server: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

/*
HTTPError is a non-success response. Message carries the "message"
field from a JSON error body when the server sent one, otherwise a
templated description of the status.
*/
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return e.Message
}

/*
DecodeError means the response body did not parse as the expected
payload.
*/
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("error decoding server response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
