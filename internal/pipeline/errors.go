package pipeline

import (
	"fmt"
	"net/http"
)

// Kind classifies a pipeline failure for HTTP mapping and caller retry
// decisions.
type Kind string

const (
	// KindInput: missing or invalid audio/clip sources. User-correctable.
	KindInput Kind = "input"
	// KindAcquisition: download or TTS exhausted its retries.
	KindAcquisition Kind = "acquisition"
	// KindProbe: the audio duration could not be read.
	KindProbe Kind = "probe"
	// KindAllClipsFailed: every clip failed fetch or normalization.
	KindAllClipsFailed Kind = "all-clips-failed"
	// KindAssembly: concatenation or mux failed.
	KindAssembly Kind = "assembly"
)

// Error is a structured pipeline failure. Detail carries a bounded
// diagnostic tail (typically transcoder stderr), never a full log.
type Error struct {
	Kind    Kind
	Message string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps the failure kind to a response status. Input errors are
// the caller's to fix; everything else is a server-side failure the caller
// may retry.
func (e *Error) HTTPStatus() int {
	if e.Kind == KindInput {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func failf(kind Kind, detail, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Detail: detail}
}

func wrapf(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}
