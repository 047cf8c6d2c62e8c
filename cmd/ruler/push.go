package main

import (
	"fmt"
	"path"

	"github.com/rulerbuild/ruler/internal/cache"
	"github.com/rulerbuild/ruler/internal/mirror"
	"github.com/rulerbuild/ruler/internal/system"
)

// runPush uploads every entry of the local cache to baseURL via the
// uploader (spec_full component N) — a separate, optional step the
// core build path never takes on its own.
func runPush(sys system.System, directory, baseURL string) error {
	c, err := cache.Open(sys, path.Join(directory, "cache"))
	if err != nil {
		return err
	}

	uploader := mirror.NewUploader(c, baseURL)
	pushed, err := uploader.PushAll()
	if err != nil {
		return err
	}
	fmt.Printf("pushed %d cache entries to %s\n", pushed, baseURL)
	return nil
}
