package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/a-h/docrelay/models"
	"github.com/a-h/jsonapi"
)

func New(baseURL, apiKey string) Client {
	return Client{
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

type Client struct {
	baseURL string
	apiKey  string
}

// APIPost sends the request to the relay and passes each chunk of the
// response to f. The response is the completion JSON when req.Stream is
// false, or the upstream stream when it's true.
func (c Client) APIPost(ctx context.Context, req models.APIPostRequest, f func(ctx context.Context, chunk []byte) error) (err error) {
	url, err := jsonapi.URL(c.baseURL).Path("api").String()
	if err != nil {
		return err
	}
	body, contentType, err := encodeForm(req)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	res, err := jsonapi.Raw(httpReq, jsonapi.WithRequestHeader("Authorization", "Bearer "+c.apiKey))
	if err != nil {
		return fmt.Errorf("failed to perform HTTP request: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(res.Body)
		return jsonapi.InvalidStatusError{
			Status: res.StatusCode,
			Body:   string(body),
		}
	}
	for {
		chunk := make([]byte, 1024)
		n, err := res.Body.Read(chunk)
		if n > 0 {
			if err := f(ctx, chunk[:n]); err != nil {
				return fmt.Errorf("failed to process chunk: %w", err)
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to read response body: %w", err)
		}
	}
	return nil
}

func encodeForm(req models.APIPostRequest) (body *bytes.Buffer, contentType string, err error) {
	messages, err := json.Marshal(req.Messages)
	if err != nil {
		return nil, "", err
	}
	body = new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	fields := [][2]string{
		{"messages", string(messages)},
		{"model", req.Model},
		{"stream", strconv.FormatBool(req.Stream)},
	}
	for _, f := range fields {
		if err = mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	for _, d := range req.Documents {
		fw, err := mw.CreateFormFile("documents", d.Filename)
		if err != nil {
			return nil, "", err
		}
		if _, err = io.Copy(fw, d.Content); err != nil {
			return nil, "", fmt.Errorf("failed to read %s: %w", d.Filename, err)
		}
	}
	if err = mw.Close(); err != nil {
		return nil, "", err
	}
	return body, mw.FormDataContentType(), nil
}
