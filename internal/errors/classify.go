package errors

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
)

// Kind groups failures by how a view should react to them.
type Kind int

const (
	KindNone Kind = iota
	// KindTransient covers network failures and timeouts. Views show a "try again" message.
	KindTransient
	// KindAuthExpired means the session is gone and the user has to log in again.
	KindAuthExpired
	// KindAuthorization covers role mismatches; never fatal.
	KindAuthorization
	// KindValidation is a 4xx from a resource endpoint, shown verbatim.
	KindValidation
	// KindUnexpected covers 5xx and malformed responses.
	KindUnexpected
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindTransient:
		return "transient"
	case KindAuthExpired:
		return "auth_expired"
	case KindAuthorization:
		return "authorization"
	case KindValidation:
		return "validation"
	default:
		return "unexpected"
	}
}

// HTTPStatuser is implemented by errors that carry a backend response status.
type HTTPStatuser interface {
	HTTPStatus() int
}

// Classify maps an error onto the portal's error taxonomy.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, ErrUnauthenticated) {
		return KindAuthExpired
	}
	var st HTTPStatuser
	if errors.As(err, &st) {
		return kindFromStatus(st.HTTPStatus())
	}
	if errors.Is(err, ErrRoleMismatch) || errors.Is(err, ErrForbidden) {
		return KindAuthorization
	}
	if errors.Is(err, ErrMalformedResponse) || errors.Is(err, ErrUnexpected) {
		return KindUnexpected
	}
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidCredentials) {
		return KindValidation
	}

	if errors.Is(err, ErrTransport) || errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}
	return KindUnexpected
}

func kindFromStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindAuthExpired
	case status == http.StatusForbidden:
		return KindAuthorization
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests:
		return KindTransient
	case status >= 400 && status < 500:
		return KindValidation
	case status == http.StatusBadGateway || status == http.StatusServiceUnavailable || status == http.StatusGatewayTimeout:
		return KindTransient
	default:
		return KindUnexpected
	}
}

// Detailer is implemented by errors that carry a backend-provided message.
type Detailer interface {
	Detail() string
}

// UserMessage returns the text a view shows in its error banner.
func UserMessage(err error) string {
	switch Classify(err) {
	case KindNone:
		return ""
	case KindTransient:
		return "The server could not be reached. Please try again."
	case KindAuthExpired:
		return "Your session has ended. Please log in again."
	case KindAuthorization:
		if errors.Is(err, ErrRoleMismatch) {
			return sentinelDetail(err, ErrRoleMismatch, "You don't have the selected role.")
		}
		return "You do not have access to this page."
	case KindValidation:
		var d Detailer
		if errors.As(err, &d) && d.Detail() != "" {
			return d.Detail()
		}
		if errors.Is(err, ErrInvalidCredentials) {
			return "Login failed. Please check your credentials and try again."
		}
		if errors.Is(err, ErrNotFound) {
			return "The requested item could not be found."
		}
		return "The request was rejected. Please check the form and try again."
	default:
		return "Something went wrong. Please try again later."
	}
}

// sentinelDetail returns the text wrapped after sentinel ("role mismatch: <detail>"), capitalised.
func sentinelDetail(err, sentinel error, fallback string) string {
	msg := err.Error()
	marker := sentinel.Error() + ": "
	i := strings.Index(msg, marker)
	if i < 0 || i+len(marker) == len(msg) {
		return fallback
	}
	detail := msg[i+len(marker):]
	return strings.ToUpper(detail[:1]) + detail[1:]
}
