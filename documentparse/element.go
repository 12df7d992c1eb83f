package documentparse

import "fmt"

type OutputFormat string

const (
	OutputFormatText     OutputFormat = "text"
	OutputFormatHTML     OutputFormat = "html"
	OutputFormatMarkdown OutputFormat = "markdown"
)

// Element is one content block returned by the parse service. Fields are
// pointers so that absent keys can be told apart from empty strings.
type Element struct {
	Category string   `json:"category,omitempty"`
	Page     int      `json:"page,omitempty"`
	Content  *Content `json:"content"`
}

type Content struct {
	Text     *string `json:"text"`
	HTML     *string `json:"html"`
	Markdown *string `json:"markdown"`
}

// MissingFieldError is returned when an element lacks a key that's needed
// to render it.
type MissingFieldError struct {
	Index int
	Field string
}

func (e MissingFieldError) Error() string {
	return fmt.Sprintf("document parse: element %d is missing %q", e.Index, e.Field)
}

func (e Element) Render(format OutputFormat) (string, error) {
	if e.Content == nil {
		return "", MissingFieldError{Field: "content"}
	}
	var v *string
	switch format {
	case OutputFormatText:
		v = e.Content.Text
	case OutputFormatHTML:
		v = e.Content.HTML
	case OutputFormatMarkdown:
		v = e.Content.Markdown
	default:
		return "", fmt.Errorf("invalid output format: %q", format)
	}
	if v == nil {
		return "", MissingFieldError{Field: "content." + string(format)}
	}
	return *v, nil
}
