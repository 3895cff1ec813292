// Package httperr provides error values that handlers return to control the
// HTTP status code of the response.
package httperr

import (
	"errors"
	"net/http"
)

// Error represents errors that can be represented as HTTP status codes.
// When a handler returns this error, the server responds with the
// corresponding status code.
type Error int

func (e Error) Error() string {
	return http.StatusText(int(e))
}

var _ error = Error(0)

// Respond writes the status code carried by err, or 500 if err carries none.
// If verbose is set, the error message is written to the response body.
func Respond(w http.ResponseWriter, err error, verbose bool) {
	var httpErr Error
	if errors.As(err, &httpErr) {
		w.WriteHeader(int(httpErr))
	} else {
		w.WriteHeader(http.StatusInternalServerError)
	}
	if verbose {
		_, _ = w.Write([]byte(err.Error()))
	}
}
