package main

import (
	"context"
	"fmt"

	"github.com/a-h/docrelay"
)

type VersionCommand struct {
}

func (c VersionCommand) Run(ctx context.Context) (err error) {
	fmt.Println(docrelay.Version)
	return nil
}
