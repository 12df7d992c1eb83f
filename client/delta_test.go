package client

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestDeltaDecoder(t *testing.T) {
	stream := "data: {\"choices\":[{\"index\":0,\"delta\":{\"role\":\"assistant\",\"content\":\"\"}}]}\n\n" +
		"data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"Hel\"}}]}\n\n" +
		": keep-alive\n\n" +
		"data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"lo\"}}]}\n\n" +
		"data: [DONE]\n\n"

	tests := []struct {
		name      string
		chunkSize int
	}{
		{name: "whole stream in one chunk", chunkSize: len(stream)},
		{name: "one byte at a time", chunkSize: 1},
		{name: "chunks split lines", chunkSize: 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sb strings.Builder
			d := NewDeltaDecoder(func(content string) error {
				sb.WriteString(content)
				return nil
			})
			for i := 0; i < len(stream); i += tt.chunkSize {
				end := min(i+tt.chunkSize, len(stream))
				if err := d.Write(context.Background(), []byte(stream[i:end])); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			}
			if err := d.Flush(); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if sb.String() != "Hello" {
				t.Errorf("expected %q, got %q", "Hello", sb.String())
			}
		})
	}
}

func TestDeltaDecoderFlushesTrailingLine(t *testing.T) {
	var got string
	d := NewDeltaDecoder(func(content string) error {
		got += content
		return nil
	})
	if err := d.Write(context.Background(), []byte(`data: {"choices":[{"delta":{"content":"end"}}]}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "" {
		t.Fatalf("expected incomplete line to be held, got %q", got)
	}
	if err := d.Flush(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "end" {
		t.Errorf("expected %q, got %q", "end", got)
	}
}

func TestDeltaDecoderErrors(t *testing.T) {
	t.Run("invalid JSON", func(t *testing.T) {
		d := NewDeltaDecoder(func(content string) error { return nil })
		if err := d.Write(context.Background(), []byte("data: {nope\n")); err == nil {
			t.Error("expected error")
		}
	})
	t.Run("callback errors are returned", func(t *testing.T) {
		errStop := errors.New("stop")
		d := NewDeltaDecoder(func(content string) error { return errStop })
		err := d.Write(context.Background(), []byte("data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n"))
		if !errors.Is(err, errStop) {
			t.Errorf("expected errStop, got %v", err)
		}
	})
}
