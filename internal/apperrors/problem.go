package apperrors

import (
	"encoding/json"
	"errors"
	"net/http"
)

// ProblemContentType is the media type of problem responses.
const ProblemContentType = "application/problem+json"

// Problem is an HTTP problem details document.
type Problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
	Field  string `json:"field,omitempty"`
}

// ToProblem maps err onto the problem reported to the caller.
//
// Upstream failures keep the provider's status and carry its body verbatim as
// the detail. Transport failures are always 503 so the caller can tell an
// absent provider from one that refused the request.
func ToProblem(err error) Problem {
	var (
		v *ValidationError
		u *UpstreamError
		t *TransportError
	)
	switch {
	case errors.As(err, &v):
		status := v.Status
		if status == 0 {
			status = http.StatusBadRequest
		}
		return Problem{
			Type:   "about:blank",
			Title:  http.StatusText(status),
			Status: status,
			Detail: v.Message,
			Field:  v.Field,
		}
	case errors.As(err, &u):
		return Problem{
			Type:   "about:blank",
			Title:  statusTitle(u.Status),
			Status: u.Status,
			Detail: string(u.Body),
		}
	case errors.As(err, &t):
		detail := "forecast provider is unreachable"
		if t.Timeout {
			detail = "forecast provider timed out"
		}
		return Problem{
			Type:   "about:blank",
			Title:  http.StatusText(http.StatusServiceUnavailable),
			Status: http.StatusServiceUnavailable,
			Detail: detail,
		}
	default:
		return Problem{
			Type:   "about:blank",
			Title:  http.StatusText(http.StatusInternalServerError),
			Status: http.StatusInternalServerError,
			Detail: "internal error",
		}
	}
}

// WriteProblem writes err as a problem response.
func WriteProblem(w http.ResponseWriter, err error) {
	p := ToProblem(err)
	w.Header().Set("Content-Type", ProblemContentType)
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func statusTitle(status int) string {
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "Upstream Error"
}
