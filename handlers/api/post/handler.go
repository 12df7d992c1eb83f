package post

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/a-h/docrelay/auth"
	"github.com/a-h/docrelay/chatcompletion"
	"github.com/a-h/docrelay/documentparse"
	"github.com/a-h/docrelay/models"
	"github.com/a-h/jsonapi"
	"github.com/a-h/respond"
)

const DefaultMaxMemory = 32 << 20

func New(log *slog.Logger, parser documentparse.Client, chat chatcompletion.Client, maxMemory int64) Handler {
	return Handler{
		log:       log,
		parser:    parser,
		chat:      chat,
		format:    documentparse.OutputFormatHTML,
		maxMemory: maxMemory,
	}
}

type Handler struct {
	log       *slog.Logger
	parser    documentparse.Client
	chat      chatcompletion.Client
	format    documentparse.OutputFormat
	maxMemory int64
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	apiKey, ok := auth.GetAPIKey(r)
	if !ok {
		http.Error(w, "Invalid authorization header", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(h.maxMemory); err != nil {
		h.log.Error("failed to parse form", slog.Any("error", err))
		respond.WithError(w, "failed to parse form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	for _, field := range []string{"messages", "model"} {
		if _, ok := r.PostForm[field]; !ok {
			respond.WithError(w, field+" is required", http.StatusUnprocessableEntity)
			return
		}
	}
	var messages []models.Message
	if err := json.Unmarshal([]byte(r.PostForm.Get("messages")), &messages); err != nil {
		h.log.Error("failed to decode messages", slog.Any("error", err))
		respond.WithError(w, "failed to decode messages", http.StatusBadRequest)
		return
	}
	model := r.PostForm.Get("model")
	var stream bool
	if v := r.PostForm.Get("stream"); v != "" {
		var err error
		if stream, err = strconv.ParseBool(v); err != nil {
			respond.WithError(w, "invalid stream value", http.StatusBadRequest)
			return
		}
	}

	documents, err := h.parseDocuments(r.Context(), apiKey, r.MultipartForm.File["documents"])
	if err != nil {
		h.log.Error("failed to parse documents", slog.Any("error", err))
		h.writeUpstreamError(w, "failed to parse documents", err)
		return
	}
	messages = append([]models.Message{{Role: models.RoleSystem, Content: documents}}, messages...)

	h.log.Info("generating content", slog.String("model", model), slog.Int("messages", len(messages)), slog.Bool("stream", stream))

	if !stream {
		resp, err := h.chat.Complete(r.Context(), apiKey, messages, model)
		if err != nil {
			h.log.Error("failed to complete chat", slog.Any("error", err))
			h.writeUpstreamError(w, "failed to complete chat", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err = w.Write(resp); err != nil {
			h.log.Error("failed to write response", slog.Any("error", err))
		}
		return
	}

	var started bool
	f := func(ctx context.Context, chunk []byte) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if !started {
				w.Header().Set("Content-Type", "application/json")
				started = true
			}
			if _, err := w.Write(chunk); err != nil {
				return err
			}
			if flusher, canFlush := w.(http.Flusher); canFlush {
				flusher.Flush()
			}
			return nil
		}
	}
	if err = h.chat.Stream(r.Context(), apiKey, messages, model, f); err != nil {
		h.log.Error("failed to stream chat", slog.Any("error", err), slog.Bool("started", started))
		if !started {
			h.writeUpstreamError(w, "failed to stream chat", err)
		}
		return
	}
}

func (h Handler) parseDocuments(ctx context.Context, apiKey string, files []*multipart.FileHeader) (string, error) {
	var sb strings.Builder
	sb.WriteString(documentparse.Preamble)
	for _, fh := range files {
		content, err := h.parseDocument(ctx, apiKey, fh)
		if err != nil {
			return "", err
		}
		sb.WriteString(documentparse.Section(fh.Filename, content))
	}
	return sb.String(), nil
}

func (h Handler) parseDocument(ctx context.Context, apiKey string, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	elements, err := h.parser.Parse(ctx, apiKey, fh.Filename, f)
	if err != nil {
		return "", err
	}
	h.log.Debug("parsed document", slog.String("filename", fh.Filename), slog.Int("elements", len(elements)))
	return documentparse.Render(elements, h.format)
}

// writeUpstreamError passes upstream status codes and bodies through unchanged.
func (h Handler) writeUpstreamError(w http.ResponseWriter, msg string, err error) {
	var status int
	var body string
	var ise jsonapi.InvalidStatusError
	var pse documentparse.StatusError
	switch {
	case errors.As(err, &ise):
		status, body = ise.Status, ise.Body
	case errors.As(err, &pse):
		status, body = pse.Status, pse.Body
	default:
		respond.WithError(w, msg, http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}
