// internal/httpcontroller/template_functions.go
package httpcontroller

import (
	"fmt"
	"html/template"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/skybound/skybound/internal/catalog"
	"github.com/skybound/skybound/internal/model"
)

// notAvailable replaces blank values on the detail page.
const notAvailable = "No disponible"

const dateLayout = "02/01/2006"

// GetTemplateFunctions returns a map of functions that can be used in templates
func (s *Server) GetTemplateFunctions() template.FuncMap {
	return template.FuncMap{
		"title":      titleCase,
		"orNA":       orNotAvailable,
		"derefOrNA":  derefOrNotAvailable,
		"imageURL":   s.imageURL,
		"date":       formatDate,
		"yesNo":      yesNo,
		"selectedID": selectedID,
		"deref":      deref,
		"dict":       dict,
	}
}

// titleCase capitalizes every word using Spanish casing rules.
func titleCase(s string) string {
	return cases.Title(language.Spanish).String(s)
}

func orNotAvailable(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}

func derefOrNotAvailable(s *string) string {
	if s == nil {
		return notAvailable
	}
	return orNotAvailable(*s)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (s *Server) imageURL(b model.Bird) string {
	return catalog.ImageURL(s.Settings.Backend.ImageBaseURL, b)
}

func formatDate(ts *model.Timestamp) string {
	if ts == nil || ts.IsZero() {
		return notAvailable
	}
	return ts.Format(dateLayout)
}

func yesNo(b bool) string {
	if b {
		return "Sí"
	}
	return "No"
}

// selectedID reports whether the optional foreign key holds id.
func selectedID(fk *int, id int) bool {
	return fk != nil && *fk == id
}

// dict builds a map from alternating keys and values, for passing several
// values to a nested template.
func dict(pairs ...any) (map[string]any, error) {
	if len(pairs)%2 != 0 {
		return nil, fmt.Errorf("dict needs an even number of arguments, got %d", len(pairs))
	}
	m := make(map[string]any, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict key %d is %T, not string", i/2, pairs[i])
		}
		m[key] = pairs[i+1]
	}
	return m, nil
}
