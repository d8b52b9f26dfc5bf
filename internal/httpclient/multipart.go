package httpclient

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strconv"
	"strings"
)

// FormField is one text part of a multipart body.
type FormField struct {
	Name  string
	Value string
}

// FilePart is the optional file attached to a multipart body.
type FilePart struct {
	FieldName   string
	FileName    string
	ContentType string
	Content     io.Reader
}

// MultipartForm is an ordered list of text fields plus at most one file.
type MultipartForm struct {
	fields []FormField
	file   *FilePart
}

// NewMultipartForm returns an empty form.
func NewMultipartForm() *MultipartForm {
	return &MultipartForm{}
}

// Add appends a text field.
func (f *MultipartForm) Add(name, value string) *MultipartForm {
	f.fields = append(f.fields, FormField{Name: name, Value: value})
	return f
}

// AddInt appends an integer field.
func (f *MultipartForm) AddInt(name string, value int) *MultipartForm {
	return f.Add(name, strconv.Itoa(value))
}

// AddBool appends a boolean field as "true" or "false".
func (f *MultipartForm) AddBool(name string, value bool) *MultipartForm {
	return f.Add(name, strconv.FormatBool(value))
}

// SetFile attaches the file part, replacing any previous one.
func (f *MultipartForm) SetFile(part FilePart) *MultipartForm {
	f.file = &part
	return f
}

// Fields returns a copy of the text fields in insertion order.
func (f *MultipartForm) Fields() []FormField {
	return append([]FormField(nil), f.fields...)
}

// Value returns the first value of the named field.
func (f *MultipartForm) Value(name string) (string, bool) {
	for _, field := range f.fields {
		if field.Name == name {
			return field.Value, true
		}
	}
	return "", false
}

// File returns the attached file part, if any.
func (f *MultipartForm) File() (FilePart, bool) {
	if f.file == nil {
		return FilePart{}, false
	}
	return *f.file, true
}

func (f *MultipartForm) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, field := range f.fields {
		if err := w.WriteField(field.Name, field.Value); err != nil {
			return nil, "", fmt.Errorf("writing field %s: %w", field.Name, err)
		}
	}

	if f.file != nil && f.file.Content != nil {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			escapeQuotes(f.file.FieldName), escapeQuotes(f.file.FileName)))
		contentType := f.file.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)

		part, err := w.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("creating file part: %w", err)
		}
		if _, err := io.Copy(part, f.file.Content); err != nil {
			return nil, "", fmt.Errorf("copying file %s: %w", f.file.FileName, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
