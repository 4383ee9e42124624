package model

import (
	"fmt"
	"net/http"
	"strings"
)

// ProblemDetails is an RFC 9457 error body.  Every non-2xx JSON response
// of the API uses it, served as application/problem+json.
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	// Code is the machine readable error kind, e.g. CAPACITY_EXCEEDED.
	Code       string `json:"code,omitempty"`
	RetryAfter *int   `json:"retry_after,omitempty"`
}

// ProblemContentType is the media type of ProblemDetails bodies.
const ProblemContentType = "application/problem+json"

const problemTypeBase = "https://visits.example/errors/"

func (p *ProblemDetails) Error() string {
	return fmt.Sprintf("[%d] %s: %s", p.Status, p.Title, p.Detail)
}

// NewProblem builds a problem for status.  code doubles as the type slug;
// an empty code yields "about:blank".
func NewProblem(status int, code, detail string) *ProblemDetails {
	typ := "about:blank"
	if code != "" {
		typ = problemTypeBase + strings.ReplaceAll(strings.ToLower(code), "_", "-")
	}
	return &ProblemDetails{
		Type:   typ,
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
		Code:   code,
	}
}
