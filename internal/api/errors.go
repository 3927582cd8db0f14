package api

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/works-s/postsmith/internal/errors"
)

const codeRateLimited = "RATE_LIMITED"

// APIError is the JSON body of every failed request.
type APIError struct { //nolint:revive // exported name matches the OpenAPI schema
	status    int
	Code      string            `json:"code" doc:"Machine-readable error code"`
	Message   string            `json:"message" doc:"Message shown to the user"`
	Retryable bool              `json:"retryable,omitempty" doc:"Sending the same request again may succeed"`
	Fields    map[string]string `json:"fields,omitempty" doc:"Per-field validation problems, keyed by location"`
	Details   any               `json:"details,omitempty" doc:"Additional error details"`
}

func (e *APIError) Error() string { return e.Message }

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int { return e.status }

// ContentType implements huma.ContentTypeFilter.
func (e *APIError) ContentType(string) string { return "application/json" }

// RegisterErrorHandler makes every huma error an APIError. Domain errors keep
// their code and message; huma's own 422s become 400 VALIDATION.
func RegisterErrorHandler() {
	huma.NewError = newAPIError
}

func newAPIError(status int, message string, errs ...error) huma.StatusError {
	for _, err := range errs {
		var de *domainerrors.Error
		if errors.As(err, &de) {
			return &APIError{
				status:    de.HTTPStatus(),
				Code:      string(de.Code),
				Message:   de.Message,
				Retryable: de.Code.Retryable(),
				Details:   de.Details,
			}
		}
	}

	if status == http.StatusUnprocessableEntity {
		status = http.StatusBadRequest
	}
	return &APIError{
		status:    status,
		Code:      codeForStatus(status),
		Message:   message,
		Retryable: status == http.StatusTooManyRequests,
		Fields:    fieldProblems(errs),
	}
}

// fieldProblems collects huma's per-location validation messages.
func fieldProblems(errs []error) map[string]string {
	var out map[string]string
	for _, err := range errs {
		var d *huma.ErrorDetail
		if !errors.As(err, &d) {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		loc := d.Location
		if loc == "" {
			loc = "request"
		}
		if prev, ok := out[loc]; ok {
			out[loc] = prev + "; " + d.Message
		} else {
			out[loc] = d.Message
		}
	}
	return out
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return string(domainerrors.CodeValidation)
	case http.StatusNotFound:
		return string(domainerrors.CodeNotFound)
	case http.StatusConflict:
		return string(domainerrors.CodeConflict)
	case http.StatusTooManyRequests:
		return codeRateLimited
	}
	if status < http.StatusInternalServerError {
		return string(domainerrors.CodeValidation)
	}
	return string(domainerrors.CodeInternal)
}
