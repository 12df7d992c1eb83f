package documentparse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-resty/resty/v2"
)

const DefaultURL = "https://api.upstage.ai/v1/document-ai/document-parse"

// New creates a client for the document parse service. model and ocr are
// sent as form fields only when they're set.
func New(url, model string, ocr OCR) Client {
	return Client{
		url:   url,
		model: model,
		ocr:   ocr,
		http:  resty.New(),
	}
}

type Client struct {
	url   string
	model string
	ocr   OCR
	http  *resty.Client
}

type OCR string

const (
	OCRDefault OCR = ""
	OCRAuto    OCR = "auto"
	OCRForce   OCR = "force"
)

func ParseOCR(s string) (OCR, error) {
	switch ocr := OCR(s); ocr {
	case OCRDefault, OCRAuto, OCRForce:
		return ocr, nil
	}
	return "", fmt.Errorf("invalid ocr mode %q", s)
}

type response struct {
	Elements []Element `json:"elements"`
}

// StatusError is returned when the parse service responds with a non-2xx status.
type StatusError struct {
	Status int
	Body   string
}

func (e StatusError) Error() string {
	return fmt.Sprintf("document parse: unexpected status %d: %s", e.Status, e.Body)
}

// Parse uploads a single document and returns its elements in response order.
func (c Client) Parse(ctx context.Context, apiKey, filename string, document io.Reader) (elements []Element, err error) {
	req := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+apiKey).
		SetFileReader("document", filename, document)
	form := map[string]string{}
	if c.model != "" {
		form["model"] = c.model
	}
	if c.ocr != OCRDefault {
		form["ocr"] = string(c.ocr)
	}
	if len(form) > 0 {
		req.SetFormData(form)
	}
	res, err := req.Post(c.url)
	if err != nil {
		return nil, fmt.Errorf("document parse: failed to post %s: %w", filename, err)
	}
	if res.StatusCode() < 200 || res.StatusCode() > 299 {
		return nil, StatusError{
			Status: res.StatusCode(),
			Body:   string(res.Body()),
		}
	}
	var r response
	if err = json.Unmarshal(res.Body(), &r); err != nil {
		return nil, fmt.Errorf("document parse: failed to decode response for %s: %w", filename, err)
	}
	return r.Elements, nil
}

// Preamble starts the system message, even when there are no documents.
const Preamble = "Documents:\n"

// Section labels the rendered content of a document with its filename.
func Section(filename, content string) string {
	return filename + ":\n" + content + "\n\n"
}

// Render concatenates the chosen rendering of each element.
func Render(elements []Element, format OutputFormat) (string, error) {
	var sb strings.Builder
	for i, e := range elements {
		s, err := e.Render(format)
		if err != nil {
			var mfe MissingFieldError
			if errors.As(err, &mfe) {
				mfe.Index = i
				return "", mfe
			}
			return "", err
		}
		sb.WriteString(s)
	}
	return sb.String(), nil
}
