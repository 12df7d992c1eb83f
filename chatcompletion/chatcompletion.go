package chatcompletion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/a-h/docrelay/models"
	"github.com/a-h/jsonapi"
)

const DefaultURL = "https://api.upstage.ai/v1/solar/chat/completions"

var ErrInvalidJSON = errors.New("chat completion: response is not valid JSON")

func New(url string) Client {
	return Client{
		url: url,
	}
}

type Client struct {
	url string
}

// Complete returns the completion object exactly as the service sent it.
func (c Client) Complete(ctx context.Context, apiKey string, messages []models.Message, model string) (resp json.RawMessage, err error) {
	res, err := c.post(ctx, apiKey, models.ChatCompletionRequest{
		Messages: messages,
		Model:    model,
		Stream:   false,
	})
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("chat completion: failed to read response body: %w", err)
	}
	if !json.Valid(body) {
		return nil, ErrInvalidJSON
	}
	return json.RawMessage(body), nil
}

// Stream passes each chunk of the streamed response to f, in the order it's
// received. A non-2xx status is returned as a jsonapi.InvalidStatusError
// before f is called.
func (c Client) Stream(ctx context.Context, apiKey string, messages []models.Message, model string, f func(ctx context.Context, chunk []byte) error) (err error) {
	res, err := c.post(ctx, apiKey, models.ChatCompletionRequest{
		Messages: messages,
		Model:    model,
		Stream:   true,
	})
	if err != nil {
		return err
	}
	defer res.Body.Close()
	chunk := make([]byte, 1024)
	for {
		n, err := res.Body.Read(chunk)
		if n > 0 {
			if ferr := f(ctx, chunk[:n]); ferr != nil {
				return fmt.Errorf("chat completion: failed to process chunk: %w", ferr)
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("chat completion: failed to read response body: %w", err)
		}
	}
}

func (c Client) post(ctx context.Context, apiKey string, req models.ChatCompletionRequest) (res *http.Response, err error) {
	buf, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: failed to marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("chat completion: failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	res, err = jsonapi.Raw(httpReq, jsonapi.WithRequestHeader("Authorization", "Bearer "+apiKey))
	if err != nil {
		return nil, fmt.Errorf("chat completion: failed to perform HTTP request: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		defer res.Body.Close()
		body, _ := io.ReadAll(res.Body)
		return nil, jsonapi.InvalidStatusError{
			Status: res.StatusCode,
			Body:   string(body),
		}
	}
	return res, nil
}
