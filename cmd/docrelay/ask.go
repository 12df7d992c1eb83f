package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/a-h/docrelay/client"
	"github.com/a-h/docrelay/models"
	"github.com/sashabaranov/go-openai"
	"gopkg.in/yaml.v3"
)

type AskCommand struct {
	RelayURL  string   `help:"The URL of the relay." env:"DOCRELAY_URL" default:"http://localhost:9020"`
	APIKey    string   `help:"The API key to pass to the upstream services." env:"DOCRELAY_API_KEY" default:""`
	Model     string   `help:"The chat model to use." env:"CHAT_MODEL" default:"solar-pro"`
	Documents []string `help:"Documents to attach, may be repeated." name:"document" short:"d"`
	Stream    bool     `help:"Write the raw response stream to stdout." default:"false"`
	Output    string   `help:"The output format of non-streamed responses." enum:"json,yaml,text" default:"json"`
	Question  string   `arg:"" help:"The question to ask."`
	LogLevel  string   `help:"The log level to use." env:"LOG_LEVEL" default:"info"`
}

func (c AskCommand) Run(ctx context.Context) (err error) {
	log := getLogger(c.LogLevel)

	docs, closeDocs, err := openDocuments(c.Documents)
	if err != nil {
		return err
	}
	defer closeDocs()
	log.Debug("asking", slog.Int("documents", len(docs)), slog.Bool("stream", c.Stream))

	req := models.APIPostRequest{
		Messages:  []models.Message{{Role: models.RoleUser, Content: c.Question}},
		Model:     c.Model,
		Stream:    c.Stream,
		Documents: docs,
	}
	rc := client.New(c.RelayURL, c.APIKey)
	if c.Stream {
		return rc.APIPost(ctx, req, func(ctx context.Context, chunk []byte) error {
			_, err := os.Stdout.Write(chunk)
			return err
		})
	}
	buf := new(bytes.Buffer)
	err = rc.APIPost(ctx, req, func(ctx context.Context, chunk []byte) error {
		_, err := buf.Write(chunk)
		return err
	})
	if err != nil {
		return err
	}
	return writeCompletion(os.Stdout, buf.Bytes(), c.Output)
}

var ErrNoChoices = errors.New("completion has no choices")

func writeCompletion(w io.Writer, completion []byte, format string) (err error) {
	switch format {
	case "json":
		var out bytes.Buffer
		if err = json.Indent(&out, completion, "", "  "); err != nil {
			return fmt.Errorf("failed to format completion: %w", err)
		}
		out.WriteByte('\n')
		_, err = out.WriteTo(w)
		return err
	case "yaml":
		var v any
		if err = json.Unmarshal(completion, &v); err != nil {
			return fmt.Errorf("failed to decode completion: %w", err)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err = enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode completion: %w", err)
		}
		return enc.Close()
	case "text":
		var resp openai.ChatCompletionResponse
		if err = json.Unmarshal(completion, &resp); err != nil {
			return fmt.Errorf("failed to decode completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return ErrNoChoices
		}
		_, err = fmt.Fprintln(w, resp.Choices[0].Message.Content)
		return err
	}
	return fmt.Errorf("unknown output format %q", format)
}
