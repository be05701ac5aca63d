package analytics

import (
	"fmt"
	"net/http"
)

// RequestError is a failure the provider reports to its caller with a status
// code and a {"detail": ...} body.
type RequestError struct {
	Status int
	Detail string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Detail)
}

func badRequest(format string, args ...interface{}) *RequestError {
	return &RequestError{Status: http.StatusBadRequest, Detail: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...interface{}) *RequestError {
	return &RequestError{Status: http.StatusNotFound, Detail: fmt.Sprintf(format, args...)}
}

func unprocessable(format string, args ...interface{}) *RequestError {
	return &RequestError{Status: http.StatusUnprocessableEntity, Detail: fmt.Sprintf(format, args...)}
}
