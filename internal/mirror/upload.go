package mirror

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rulerbuild/ruler/internal/cache"
	rulererrors "github.com/rulerbuild/ruler/internal/errors"
	"github.com/rulerbuild/ruler/internal/ticket"
)

// Uploader is the write-side complement the core build path
// deliberately never calls (spec_full component N, grounded on
// original_source's uploader.rs): an operator-run tool that PUTs
// every entry of a local cache to a mirror's /files/<ticket>.
type Uploader struct {
	cache   *cache.Cache
	baseURL string
	http    *http.Client
}

// NewUploader builds an Uploader pushing c's entries to baseURL.
func NewUploader(c *cache.Cache, baseURL string) *Uploader {
	return &Uploader{cache: c, baseURL: strings.TrimRight(baseURL, "/"), http: &http.Client{Timeout: 60 * time.Second}}
}

// PushAll iterates the cache's entries in List order and PUTs each
// one, stopping at the first error.
func (u *Uploader) PushAll() (int, error) {
	const pageSize = 256
	pushed := 0
	for start := 0; ; start += pageSize {
		names, err := u.cache.List(start, pageSize)
		if err != nil {
			return pushed, err
		}
		if len(names) == 0 {
			return pushed, nil
		}
		for _, name := range names {
			if err := u.pushOne(name); err != nil {
				return pushed, err
			}
			pushed++
		}
	}
}

func (u *Uploader) pushOne(ticketName string) error {
	t, err := ticket.ParseText(ticketName)
	if err != nil {
		return rulererrors.Wrap("mirror.Uploader.PushAll", rulererrors.KindSystemError, err).WithPath(ticketName)
	}
	f, err := u.cache.Open(t)
	if err != nil {
		return err
	}
	defer f.Close()

	url := fmt.Sprintf("%s/files/%s", u.baseURL, ticketName)
	req, err := http.NewRequest(http.MethodPut, url, f)
	if err != nil {
		return rulererrors.Wrap("mirror.Uploader.PushAll", rulererrors.KindSystemError, err).WithPath(url)
	}

	resp, err := u.http.Do(req)
	if err != nil {
		return rulererrors.Wrap("mirror.Uploader.PushAll", rulererrors.KindSystemError, err).WithPath(url)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return rulererrors.New("mirror.Uploader.PushAll", rulererrors.KindSystemError).WithPath(url)
	}
	return nil
}
