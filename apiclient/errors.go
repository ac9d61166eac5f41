package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	perrors "github.com/jrsteele09/academy-portal/internal/errors"
	"github.com/jrsteele09/academy-portal/internal/utils"
)

const maxDetailLength = 300

// APIError is a non-2xx response from the backend.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("[apiclient] %s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	if d := e.Detail(); d != "" {
		msg += ": " + d
	}
	return msg
}

func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

// Unwrap maps the status onto the portal's sentinel errors.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return perrors.ErrUnauthenticated
	case e.StatusCode == http.StatusForbidden:
		return perrors.ErrForbidden
	case e.StatusCode == http.StatusNotFound:
		return perrors.ErrNotFound
	case e.StatusCode >= 500:
		return perrors.ErrUnexpected
	case e.StatusCode >= 400:
		return perrors.ErrValidation
	}
	return nil
}

// Detail extracts the backend's human readable message. The backend answers with
// {"detail": "..."}, {"error": "..."}, {"message": "..."} or a field -> messages map.
func (e *APIError) Detail() string {
	body := strings.TrimSpace(string(e.Body))
	if body == "" {
		return ""
	}

	var fields map[string]any
	if err := json.Unmarshal(e.Body, &fields); err != nil {
		if strings.HasPrefix(body, "<") || len(body) > maxDetailLength {
			return ""
		}
		return body
	}

	for _, key := range []string{"detail", "error", "message"} {
		if s, ok := fields[key].(string); ok && s != "" {
			return s
		}
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		switch v := fields[k].(type) {
		case string:
			parts = append(parts, k+": "+v)
		case []any:
			if msgs := utils.ToStringSlice(v); len(msgs) > 0 {
				parts = append(parts, k+": "+strings.Join(msgs, " "))
			}
		}
	}
	return strings.Join(parts, "; ")
}
