package httpclient

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/antonholmquist/jason"
	"github.com/k3a/html2text"

	"github.com/skybound/skybound/internal/errors"
)

// maxMessageLength bounds the human readable message kept on a RequestError.
const maxMessageLength = 300

// NetworkError means the request never produced a usable response: DNS,
// refused connection, timeout, cancellation or an unreadable body.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) ErrorCategory() errors.ErrorCategory { return errors.CategoryNetwork }

// RequestError means the backend answered with a non-2xx status, or with a
// success body that could not be decoded.
type RequestError struct {
	Method  string
	URL     string
	Status  int
	Body    []byte
	Message string // extracted from the body when possible
}

func (e *RequestError) Error() string {
	msg := fmt.Sprintf("%s %s: backend returned %d %s", e.Method, e.URL, e.Status, http.StatusText(e.Status))
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *RequestError) ErrorCategory() errors.ErrorCategory { return errors.CategoryHTTP }

func newRequestError(req *http.Request, status int, contentType string, body []byte) *RequestError {
	return &RequestError{
		Method:  req.Method,
		URL:     redactURL(req.URL.String()),
		Status:  status,
		Body:    body,
		Message: extractMessage(contentType, body),
	}
}

// extractMessage pulls a short description out of an error body. JSON
// problem documents, HTML error pages and plain text are understood.
func extractMessage(contentType string, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}

	switch {
	case strings.Contains(contentType, "json") || strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "\""):
		if msg := jsonMessage(body); msg != "" {
			return truncate(msg)
		}
	case strings.Contains(contentType, "html") || strings.HasPrefix(trimmed, "<"):
		return truncate(strings.Join(strings.Fields(html2text.HTML2Text(trimmed)), " "))
	}
	return truncate(trimmed)
}

func jsonMessage(body []byte) string {
	if value, err := jason.NewValueFromBytes(body); err == nil {
		if s, err := value.String(); err == nil {
			return s
		}
	}

	obj, err := jason.NewObjectFromBytes(body)
	if err != nil {
		return ""
	}

	var parts []string
	for _, key := range []string{"title", "message", "detail"} {
		if s, err := obj.GetString(key); err == nil && s != "" {
			parts = append(parts, s)
			break
		}
	}

	// ASP.NET validation problems list messages per field
	if fieldErrors, err := obj.GetObject("errors"); err == nil {
		for field, value := range fieldErrors.Map() {
			msgs, err := value.Array()
			if err != nil {
				continue
			}
			for _, m := range msgs {
				if s, err := m.String(); err == nil {
					parts = append(parts, field+": "+s)
				}
			}
		}
	}
	return strings.Join(parts, "; ")
}

// truncate cuts s to at most maxMessageLength bytes on a rune boundary.
func truncate(s string) string {
	if len(s) <= maxMessageLength {
		return s
	}
	cut := maxMessageLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// IsStatus reports whether err is a RequestError carrying status.
func IsStatus(err error, status int) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.Status == status
}
