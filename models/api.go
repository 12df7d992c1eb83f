package models

import "io"

// APIPostRequest holds the multipart form fields accepted by POST /api.
type APIPostRequest struct {
	Messages  []Message
	Model     string
	Stream    bool
	Documents []Document
}

// Document is a file to upload alongside the chat request.
type Document struct {
	Filename string
	Content  io.Reader
}
