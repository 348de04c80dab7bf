package dpr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Op identifies which backend call failed.
type Op string

const (
	OpUpload Op = "upload"
	OpStatus Op = "status"
	OpList   Op = "list"
	OpDelete Op = "delete"
)

// ErrorKind categorizes a client failure.
type ErrorKind int

const (
	// KindTransport is a network failure other than a deadline.
	KindTransport ErrorKind = iota
	// KindTimeout means the call's time budget ran out.
	KindTimeout
	// KindHTTPStatus means the backend answered with a non-2xx status.
	KindHTTPStatus
	// KindDecode means a 2xx body could not be decoded.
	KindDecode
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindHTTPStatus:
		return "http_status"
	case KindDecode:
		return "decode"
	default:
		return "transport"
	}
}

// Error is returned by every Client call. Op distinguishes upload, status,
// list and delete failures; Kind distinguishes timeouts from status errors.
type Error struct {
	Op         Op
	Kind       ErrorKind
	StatusCode int
	Body       string
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status=%d)", msg, e.StatusCode)
	}
	if e.Err != nil && e.Kind != KindHTTPStatus {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Timeout reports whether the call ran out of time.
func (e *Error) Timeout() bool {
	return e != nil && e.Kind == KindTimeout
}

// IsTimeout reports whether err is a client timeout.
func IsTimeout(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Timeout()
}

// UserMessage is the text to show a user for a failed call: the backend's own
// message when the error carries one, else the error text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}

// OpOf returns the failed operation, or "" when err is not a client error.
func OpOf(err error) Op {
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

var timeoutMessages = map[Op]string{
	OpUpload: "upload timeout - backend server may not be responding",
	OpStatus: "status request timeout - backend server may not be responding",
	OpList:   "request timeout - backend server may not be responding",
	OpDelete: "delete timeout - backend server may not be responding",
}

var genericMessages = map[Op]string{
	OpUpload: "failed to upload DPR",
	OpStatus: "failed to fetch job status",
	OpList:   "failed to fetch DPR list",
	OpDelete: "failed to delete DPR",
}

func transportError(op Op, err error) *Error {
	if isDeadline(err) {
		return &Error{Op: op, Kind: KindTimeout, Message: timeoutMessages[op], Err: err}
	}
	return &Error{Op: op, Kind: KindTransport, Message: genericMessages[op], Err: err}
}

func statusError(op Op, code int, body []byte) *Error {
	text := strings.TrimSpace(string(body))
	msg := genericMessages[op]
	if m := messageFromBody(body); m != "" {
		msg = m
	}
	return &Error{Op: op, Kind: KindHTTPStatus, StatusCode: code, Body: text, Message: msg}
}

func decodeError(op Op, err error) *Error {
	return &Error{Op: op, Kind: KindDecode, Message: "unexpected response from backend", Err: err}
}

func isDeadline(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// messageFromBody extracts a "message" field from a JSON error body.
func messageFromBody(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.Message)
}
