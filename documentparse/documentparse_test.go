package documentparse

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func ptr(s string) *string { return &s }

func TestRender(t *testing.T) {
	elements := []Element{
		{Content: &Content{Text: ptr("X"), HTML: ptr("<p>X</p>"), Markdown: ptr("X")}},
		{Content: &Content{Text: ptr("Y"), HTML: ptr("<h1>Y</h1>"), Markdown: ptr("# Y")}},
	}
	tests := []struct {
		name     string
		format   OutputFormat
		expected string
	}{
		{
			name:     "html renderings are concatenated in order",
			format:   OutputFormatHTML,
			expected: "<p>X</p><h1>Y</h1>",
		},
		{
			name:     "text renderings are concatenated in order",
			format:   OutputFormatText,
			expected: "XY",
		},
		{
			name:     "markdown renderings are concatenated in order",
			format:   OutputFormatMarkdown,
			expected: "X# Y",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual, err := Render(elements, tt.format)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if actual != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, actual)
			}
		})
	}
}

func TestRenderErrors(t *testing.T) {
	tests := []struct {
		name     string
		elements []Element
		format   OutputFormat
		expected MissingFieldError
	}{
		{
			name:     "missing content",
			elements: []Element{{Content: &Content{HTML: ptr("a")}}, {}},
			format:   OutputFormatHTML,
			expected: MissingFieldError{Index: 1, Field: "content"},
		},
		{
			name:     "missing rendering",
			elements: []Element{{Content: &Content{Text: ptr("a")}}},
			format:   OutputFormatHTML,
			expected: MissingFieldError{Index: 0, Field: "content.html"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Render(tt.elements, tt.format)
			var mfe MissingFieldError
			if !errors.As(err, &mfe) {
				t.Fatalf("expected MissingFieldError, got %v", err)
			}
			if diff := cmp.Diff(tt.expected, mfe); diff != "" {
				t.Error(diff)
			}
		})
	}
	t.Run("invalid format", func(t *testing.T) {
		_, err := Render([]Element{{Content: &Content{}}}, OutputFormat("pdf"))
		if err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestRenderNoElements(t *testing.T) {
	actual, err := Render(nil, OutputFormatHTML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if actual != "" {
		t.Errorf("expected empty string, got %q", actual)
	}
}

func TestSection(t *testing.T) {
	actual := Preamble + Section("a.pdf", "<p>X</p>")
	expected := "Documents:\na.pdf:\n<p>X</p>\n\n"
	if actual != expected {
		t.Errorf("expected %q, got %q", expected, actual)
	}
}

func TestParse(t *testing.T) {
	var gotAuth, gotFilename, gotContent, gotModel, gotOCR string
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		f, fh, err := r.FormFile("document")
		if err != nil {
			t.Errorf("failed to read document: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		b, _ := io.ReadAll(f)
		gotFilename = fh.Filename
		gotContent = string(b)
		gotModel = r.FormValue("model")
		gotOCR = r.FormValue("ocr")
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"api":"1.1","elements":[{"category":"paragraph","page":1,"content":{"text":"X","html":"<p>X</p>","markdown":"X"}},{"category":"heading1","page":1,"content":{"text":"Y","html":"<h1>Y</h1>","markdown":"# Y"}}]}`)
	}))
	defer s.Close()

	t.Run("elements are returned in response order", func(t *testing.T) {
		c := New(s.URL, "", OCRDefault)
		elements, err := c.Parse(context.Background(), "test-key", "a.pdf", strings.NewReader("%PDF-1.4"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		expected := []Element{
			{Category: "paragraph", Page: 1, Content: &Content{Text: ptr("X"), HTML: ptr("<p>X</p>"), Markdown: ptr("X")}},
			{Category: "heading1", Page: 1, Content: &Content{Text: ptr("Y"), HTML: ptr("<h1>Y</h1>"), Markdown: ptr("# Y")}},
		}
		if diff := cmp.Diff(expected, elements); diff != "" {
			t.Error(diff)
		}
		if gotAuth != "Bearer test-key" {
			t.Errorf("unexpected Authorization header %q", gotAuth)
		}
		if gotFilename != "a.pdf" {
			t.Errorf("unexpected filename %q", gotFilename)
		}
		if gotContent != "%PDF-1.4" {
			t.Errorf("unexpected content %q", gotContent)
		}
		if gotModel != "" || gotOCR != "" {
			t.Errorf("expected no model or ocr fields, got %q and %q", gotModel, gotOCR)
		}
	})
	t.Run("model and ocr are sent when configured", func(t *testing.T) {
		c := New(s.URL, "document-parse", OCRForce)
		if _, err := c.Parse(context.Background(), "test-key", "a.pdf", strings.NewReader("data")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if gotModel != "document-parse" {
			t.Errorf("unexpected model %q", gotModel)
		}
		if gotOCR != "force" {
			t.Errorf("unexpected ocr %q", gotOCR)
		}
	})
}

func TestParseMissingElements(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"api":"1.1"}`)
	}))
	defer s.Close()

	elements, err := New(s.URL, "", OCRDefault).Parse(context.Background(), "k", "a.pdf", strings.NewReader("data"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(elements) != 0 {
		t.Errorf("expected no elements, got %d", len(elements))
	}
}

func TestParseStatusError(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"invalid api key"}}`)
	}))
	defer s.Close()

	_, err := New(s.URL, "", OCRDefault).Parse(context.Background(), "k", "a.pdf", strings.NewReader("data"))
	var se StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	expected := StatusError{Status: http.StatusUnauthorized, Body: `{"error":{"message":"invalid api key"}}`}
	if diff := cmp.Diff(expected, se); diff != "" {
		t.Error(diff)
	}
}

func TestParseOCR(t *testing.T) {
	for _, s := range []string{"", "auto", "force"} {
		if _, err := ParseOCR(s); err != nil {
			t.Errorf("unexpected error for %q: %v", s, err)
		}
	}
	if _, err := ParseOCR("always"); err == nil {
		t.Error("expected error for invalid ocr mode")
	}
}
