package transport

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FailureKind attributes a failure to one of the categories the queue
// counts independently: network I/O, authentication, or response shape.
type FailureKind int

const (
	KindIO FailureKind = iota
	KindAuth
	KindParse
)

func (k FailureKind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindParse:
		return "parse"
	default:
		return "io"
	}
}

// bodySnippetLimit bounds how much of an offending response body travels
// with an error. Enough to see what the server actually said, not enough
// to flood a log line.
const bodySnippetLimit = 500

// ConnError is the typed failure of a transport or connection operation.
type ConnError struct {
	Code    StatusCode
	Kind    FailureKind
	Op      string
	Message string
	Body    string
	Err     error
}

func (e *ConnError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Code != StatusUnknown {
		fmt.Fprintf(&b, " (%s)", e.Code)
	}
	if e.Body != "" {
		fmt.Fprintf(&b, "; body: %q", e.Body)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ConnError) Unwrap() error {
	return e.Err
}

// Hard reports whether retrying the same operation cannot succeed.
func (e *ConnError) Hard() bool {
	return e.Code.Hard()
}

func newError(kind FailureKind, code StatusCode, op, format string, args ...any) *ConnError {
	return &ConnError{Code: code, Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// IOError wraps a network-level failure.
func IOError(op string, err error) *ConnError {
	return &ConnError{Kind: KindIO, Op: op, Message: "request failed", Err: err}
}

// ParseError wraps a malformed or unexpectedly shaped response, keeping a
// truncated copy of the offending body.
func ParseError(op, body string, err error) *ConnError {
	return &ConnError{
		Kind:    KindParse,
		Op:      op,
		Message: "unexpected response shape",
		Body:    Snippet(body),
		Err:     err,
	}
}

// Snippet truncates a response body for inclusion in errors and logs.
func Snippet(body string) string {
	body = strings.TrimSpace(body)
	if len(body) > bodySnippetLimit {
		return body[:bodySnippetLimit] + "..."
	}
	return body
}

func kindForStatus(code StatusCode) FailureKind {
	switch code {
	case StatusUnauthorized, StatusForbidden, StatusAuthenticationError,
		StatusCredentialsOfOtherUser, StatusNoCredentialsForHost:
		return KindAuth
	default:
		return KindIO
	}
}

// errorFromResponse classifies a non-200 response. The provider may ship a
// JSON error body; its "error" field refines an UNKNOWN classification,
// since some servers report missing items with an unclassifiable status
// and only the error text says what happened.
func errorFromResponse(op string, httpCode int, body string) *ConnError {
	code := StatusCodeFromHTTP(httpCode)
	var errBody struct {
		Error string `json:"error"`
	}
	if jsonErr := json.Unmarshal([]byte(body), &errBody); jsonErr != nil {
		return &ConnError{
			Kind:    kindForStatus(code),
			Code:    code,
			Op:      op,
			Message: fmt.Sprintf("status=%d, non-JSON error response", httpCode),
			Body:    Snippet(body),
		}
	}
	if code == StatusUnknown && strings.Contains(errBody.Error, "not found") {
		code = StatusNotFound
	}
	return &ConnError{
		Kind:    kindForStatus(code),
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf("status=%d, error=%q", httpCode, errBody.Error),
	}
}
