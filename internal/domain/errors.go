package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind is the machine-readable classification of a pipeline error.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation_error"
	KindTriggerFailed     ErrorKind = "upstream_trigger_failed"
	KindPollFailed        ErrorKind = "upstream_poll_failed"
	KindFetchFailed       ErrorKind = "upstream_fetch_failed"
	KindJobFailed         ErrorKind = "upstream_job_failed"
	KindTimeout           ErrorKind = "timeout"
	KindPublishFailed     ErrorKind = "publish_failed"
	KindDeleteFailed      ErrorKind = "delete_failed"
	KindSearchFailed      ErrorKind = "upstream_search_failed"
	KindStreamUnavailable ErrorKind = "stream_unavailable"
	KindInternal          ErrorKind = "internal_error"
)

// maxBodyInError caps the upstream body carried in Error() output.
const maxBodyInError = 512

// Error is a typed pipeline error. Upstream failures carry the remote status and body.
type Error struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	Body       string
	Err        error
}

// NewError creates an Error of the given kind.
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates an Error of the given kind wrapping err.
func WrapError(kind ErrorKind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// UpstreamError creates an Error for a non-2xx upstream response.
func UpstreamError(kind ErrorKind, statusCode int, body string, format string, args ...interface{}) *Error {
	return &Error{
		Kind:       kind,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
		Body:       body,
	}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s: HTTP %d", msg, e.StatusCode)
	}
	if e.Body != "" {
		body := e.Body
		if len(body) > maxBodyInError {
			body = body[:maxBodyInError] + "..."
		}
		msg = msg + ": " + body
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first Error in err's chain, or KindInternal.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// HTTPStatus maps an error kind to the status returned to API callers.
func HTTPStatus(kind ErrorKind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindTriggerFailed, KindPollFailed, KindFetchFailed, KindJobFailed,
		KindPublishFailed, KindDeleteFailed, KindSearchFailed, KindStreamUnavailable:
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
