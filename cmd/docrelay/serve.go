package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/a-h/docrelay/auth"
	"github.com/a-h/docrelay/chatcompletion"
	"github.com/a-h/docrelay/documentparse"
	apipost "github.com/a-h/docrelay/handlers/api/post"
	"github.com/rs/cors"
)

type ServeCommand struct {
	ListenAddr         string `help:"The address to listen on." env:"LISTEN_ADDR" default:"localhost:9020"`
	DocumentParseURL   string `help:"The URL of the document parse service." env:"DOCUMENT_PARSE_URL" default:"https://api.upstage.ai/v1/document-ai/document-parse"`
	DocumentParseModel string `help:"The document parse model, omitted from requests if empty." env:"DOCUMENT_PARSE_MODEL" default:""`
	DocumentParseOCR   string `help:"The OCR mode of the document parse service, omitted from requests if empty." env:"DOCUMENT_PARSE_OCR" default:""`
	ChatCompletionURL  string `help:"The URL of the chat completion service." env:"CHAT_COMPLETION_URL" default:"https://api.upstage.ai/v1/solar/chat/completions"`
	MaxUploadBytes     int64  `help:"The number of bytes of uploaded documents to hold in memory, the rest is stored in temporary files." env:"MAX_UPLOAD_BYTES" default:"33554432"`
	TLSCertFile        string `help:"The TLS certificate file." env:"TLS_CERT_FILE" default:""`
	TLSKeyFile         string `help:"The TLS key file." env:"TLS_KEY_FILE" default:""`
	LogLevel           string `help:"The log level to use." env:"LOG_LEVEL" default:"info"`
}

func (c ServeCommand) Run(ctx context.Context) (err error) {
	log := getLogger(c.LogLevel)

	ocr, err := documentparse.ParseOCR(c.DocumentParseOCR)
	if err != nil {
		return err
	}

	log.Info("creating upstream clients", slog.String("documentParseURL", c.DocumentParseURL), slog.String("chatCompletionURL", c.ChatCompletionURL))
	parser := documentparse.New(c.DocumentParseURL, c.DocumentParseModel, ocr)
	chat := chatcompletion.New(c.ChatCompletionURL)

	mux := http.NewServeMux()
	mux.Handle("POST /api", apipost.New(log, parser, chat, c.MaxUploadBytes))

	authenticatedMux := auth.New(mux)
	withCORSAuthenticatedMux := cors.AllowAll().Handler(authenticatedMux)

	log.Info("Listening", slog.String("addr", c.ListenAddr))
	s := &http.Server{
		Addr:    c.ListenAddr,
		Handler: withCORSAuthenticatedMux,
	}
	if c.TLSCertFile != "" && c.TLSKeyFile != "" {
		log.Info("Enabling TLS mode")
		var cert tls.Certificate
		cert, err = tls.LoadX509KeyPair(c.TLSCertFile, c.TLSKeyFile)
		if err != nil {
			return fmt.Errorf("failed to load cert: %w", err)
		}
		s.TLSConfig = &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: []tls.Certificate{cert},
		}
		return s.ListenAndServeTLS(c.TLSCertFile, c.TLSKeyFile)
	}
	return s.ListenAndServe()
}
