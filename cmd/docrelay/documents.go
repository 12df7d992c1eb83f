package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/a-h/docrelay/models"
)

// openDocuments opens the named files for upload. The caller must call closeAll
// once the request has been sent.
func openDocuments(names []string) (docs []models.Document, closeAll func() error, err error) {
	files := make([]*os.File, 0, len(names))
	closeAll = func() error {
		errs := make([]error, len(files))
		for i, f := range files {
			errs[i] = f.Close()
		}
		return errors.Join(errs...)
	}
	for _, name := range names {
		f, err := os.Open(name)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to open document %s: %w", name, err)
		}
		files = append(files, f)
		docs = append(docs, models.Document{
			Filename: filepath.Base(name),
			Content:  f,
		})
	}
	return docs, closeAll, nil
}
