package transport

import "net/http"

// StatusCode is the uniform classification of a provider response. Providers
// disagree about HTTP status semantics, so the raw code is mapped here once
// and refined from the error body where possible.
type StatusCode int

const (
	StatusUnknown StatusCode = iota
	StatusOK
	StatusUnsupportedAPI
	StatusNotFound
	StatusBadRequest
	StatusAuthenticationError
	StatusCredentialsOfOtherUser
	StatusNoCredentialsForHost
	StatusUnauthorized
	StatusForbidden
	StatusInternalServerError
	StatusBadGateway
	StatusServiceUnavailable
	StatusMoved
	StatusRequestEntityTooLarge
	StatusLengthRequired
	StatusTooManyRequests
	StatusClientError
	StatusServerError
)

func (s StatusCode) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusUnsupportedAPI:
		return "UNSUPPORTED_API"
	case StatusNotFound:
		return "NOT_FOUND"
	case StatusBadRequest:
		return "BAD_REQUEST"
	case StatusAuthenticationError:
		return "AUTHENTICATION_ERROR"
	case StatusCredentialsOfOtherUser:
		return "CREDENTIALS_OF_OTHER_USER"
	case StatusNoCredentialsForHost:
		return "NO_CREDENTIALS_FOR_HOST"
	case StatusUnauthorized:
		return "UNAUTHORIZED"
	case StatusForbidden:
		return "FORBIDDEN"
	case StatusInternalServerError:
		return "INTERNAL_SERVER_ERROR"
	case StatusBadGateway:
		return "BAD_GATEWAY"
	case StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	case StatusMoved:
		return "MOVED"
	case StatusRequestEntityTooLarge:
		return "REQUEST_ENTITY_TOO_LARGE"
	case StatusLengthRequired:
		return "LENGTH_REQUIRED"
	case StatusTooManyRequests:
		return "TOO_MANY_REQUESTS"
	case StatusClientError:
		return "CLIENT_ERROR"
	case StatusServerError:
		return "SERVER_ERROR"
	default:
		return "UNKNOWN"
	}
}

// StatusCodeFromHTTP maps an HTTP response code to its classification.
func StatusCodeFromHTTP(code int) StatusCode {
	switch code {
	case http.StatusOK:
		return StatusOK
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect:
		return StatusMoved
	case http.StatusBadRequest:
		return StatusBadRequest
	case http.StatusUnauthorized:
		return StatusUnauthorized
	case http.StatusForbidden:
		return StatusForbidden
	case http.StatusNotFound:
		return StatusNotFound
	case http.StatusLengthRequired:
		return StatusLengthRequired
	case http.StatusRequestEntityTooLarge:
		return StatusRequestEntityTooLarge
	case http.StatusTooManyRequests:
		return StatusTooManyRequests
	case http.StatusInternalServerError:
		return StatusInternalServerError
	case http.StatusBadGateway:
		return StatusBadGateway
	case http.StatusServiceUnavailable:
		return StatusServiceUnavailable
	default:
		switch {
		case code >= 500:
			return StatusServerError
		case code >= 400:
			return StatusClientError
		default:
			return StatusUnknown
		}
	}
}

// Hard reports whether a status never recovers by retrying with the same
// request.
func (s StatusCode) Hard() bool {
	switch s {
	case StatusNotFound, StatusBadRequest, StatusAuthenticationError,
		StatusCredentialsOfOtherUser, StatusNoCredentialsForHost,
		StatusUnauthorized, StatusForbidden, StatusUnsupportedAPI,
		StatusRequestEntityTooLarge, StatusLengthRequired:
		return true
	default:
		return false
	}
}
