package types

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// ClassificationResult is the raw answer returned by a vision backend.
// Text is displayed as-is; it is not validated against the requested template.
type ClassificationResult struct {
	Text     string        `json:"text"`
	Backend  string        `json:"backend"`
	Model    string        `json:"model"`
	Duration time.Duration `json:"duration"`
}

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	AspectRatio float64 `json:"aspect_ratio"`
	Area        int     `json:"area"`
	Format      string  `json:"format,omitempty"`
}

// ErrorKind tags a failure with the stage that produced it.
type ErrorKind string

const (
	// DecodeError: the uploaded bytes are not a supported image.
	DecodeError ErrorKind = "DecodeError"
	// EncodingError: the decoded bitmap could not be re-encoded for transport.
	EncodingError ErrorKind = "EncodingError"
	// TransportError: the backend call failed or returned a non-2xx status.
	TransportError ErrorKind = "TransportError"
	// StructuralError: the call succeeded but the answer field was missing.
	StructuralError ErrorKind = "StructuralError"
	// ConfigError: required configuration (e.g. the API key) is absent or invalid.
	ConfigError ErrorKind = "ConfigError"
	// ParseError: the answer text does not follow the four-field template.
	ParseError ErrorKind = "ParseError"
)

// Error is the error type returned by every stage of the classification flow.
type Error struct {
	Kind       ErrorKind
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// AsError returns the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func NewDecodeError(op string, err error) *Error {
	return &Error{Kind: DecodeError, Op: op, Err: err}
}

func NewEncodingError(op string, err error) *Error {
	return &Error{Kind: EncodingError, Op: op, Err: err}
}

// NewTransportError records the status code and whatever body was read.
func NewTransportError(op string, statusCode int, body string, err error) *Error {
	return &Error{Kind: TransportError, Op: op, StatusCode: statusCode, Body: body, Err: err}
}

func NewStructuralError(op string, err error) *Error {
	return &Error{Kind: StructuralError, Op: op, Err: err}
}

func NewConfigError(op string, err error) *Error {
	return &Error{Kind: ConfigError, Op: op, Err: err}
}

func NewParseError(op string, err error) *Error {
	return &Error{Kind: ParseError, Op: op, Err: err}
}

// TruncateBody keeps at most limit bytes of a response body for display. The cut
// never splits a UTF-8 sequence; a shortened body ends with "…".
func TruncateBody(body []byte, limit int) string {
	if len(body) <= limit {
		return string(body)
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return string(body[:cut]) + "…"
}
