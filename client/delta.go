package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// DeltaDecoder turns a server-sent event stream from an OpenAI compatible
// chat completion service into content deltas. Chunks may split lines at any
// byte, so incomplete lines are held until the rest arrives.
type DeltaDecoder struct {
	buf     []byte
	OnDelta func(content string) error
}

func NewDeltaDecoder(onDelta func(content string) error) *DeltaDecoder {
	return &DeltaDecoder{
		OnDelta: onDelta,
	}
}

var dataPrefix = []byte("data:")

// Write has the same signature as the streaming callbacks used by Client.
func (d *DeltaDecoder) Write(ctx context.Context, chunk []byte) error {
	d.buf = append(d.buf, chunk...)
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			return nil
		}
		line := bytes.TrimSpace(d.buf[:i])
		d.buf = d.buf[i+1:]
		if err := d.line(line); err != nil {
			return err
		}
	}
}

// Flush processes any trailing line that wasn't terminated by a newline.
func (d *DeltaDecoder) Flush() error {
	line := bytes.TrimSpace(d.buf)
	d.buf = nil
	return d.line(line)
}

func (d *DeltaDecoder) line(line []byte) error {
	if !bytes.HasPrefix(line, dataPrefix) {
		return nil
	}
	data := bytes.TrimSpace(bytes.TrimPrefix(line, dataPrefix))
	if len(data) == 0 || string(data) == "[DONE]" {
		return nil
	}
	var resp openai.ChatCompletionStreamResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return fmt.Errorf("failed to decode stream event: %w", err)
	}
	for _, choice := range resp.Choices {
		if choice.Delta.Content == "" {
			continue
		}
		if err := d.OnDelta(choice.Delta.Content); err != nil {
			return err
		}
	}
	return nil
}
