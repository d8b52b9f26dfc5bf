package form

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/skybound/skybound/internal/errors"
)

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// optionalInt parses a select value. The empty option means no selection.
func optionalInt(values url.Values, field string) (*int, error) {
	raw := strings.TrimSpace(values.Get(field))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, errors.New(err).
			Component("form").
			Category(errors.CategoryValidation).
			Context("field", field).
			Build()
	}
	return &n, nil
}

// optionalString returns nil when field was not posted at all.
func optionalString(values url.Values, field string) *string {
	if _, ok := values[field]; !ok {
		return nil
	}
	v := strings.TrimSpace(values.Get(field))
	return &v
}

// checkbox reads an HTML checkbox. Unchecked boxes are not posted.
func checkbox(values url.Values, field string) bool {
	raw := strings.TrimSpace(values.Get(field))
	if raw == "on" {
		return true
	}
	b, err := strconv.ParseBool(raw)
	return err == nil && b
}
