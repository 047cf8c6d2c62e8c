// Package mirror implements the read-side HTTP client the resolution
// engine falls back to (spec §4.F), the runnable mirror server that
// answers those requests (§6, component M), and the operator-run
// uploader that seeds a mirror from a local cache (component N).
package mirror

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rulerbuild/ruler/internal/state"
	"github.com/rulerbuild/ruler/internal/system"
	"github.com/rulerbuild/ruler/internal/ticket"
)

// Client is the downloader described by spec §4.F: an ordered list of
// base URLs, tried in order; the first success wins and every failure
// collapses to "not there" rather than a hard error.
type Client struct {
	sys      system.System
	baseURLs []string
	http     *http.Client
}

// NewClient builds a Client over baseURLs, tried in the given order.
func NewClient(sys system.System, baseURLs []string) *Client {
	return &Client{
		sys:      sys,
		baseURLs: baseURLs,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// RestoreFile attempts GET <base>/files/<ticket> against each
// configured base URL in turn and streams the first successful body
// to destPath. Returns false, not an error, if every base fails.
func (c *Client) RestoreFile(t ticket.Ticket, destPath string) (bool, error) {
	for _, base := range c.baseURLs {
		url := fmt.Sprintf("%s/files/%s", strings.TrimRight(base, "/"), t.ToText())
		if c.tryRestore(url, destPath) {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) tryRestore(url, destPath string) bool {
	resp, err := c.http.Get(url)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}

	w, err := c.sys.Create(destPath)
	if err != nil {
		return false
	}
	defer w.Close()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return false
	}
	return true
}

// GetTargetTickets attempts GET <base>/rules/<ruleTicket>/<sourceTicket>
// against each base URL in turn, parsing the first successful body as
// a newline-separated list of base64 tickets. Returns ok=false if
// every base fails or the body fails to parse.
func (c *Client) GetTargetTickets(ruleTicket, sourceTicket ticket.Ticket) (state.FileStateVec, bool) {
	for _, base := range c.baseURLs {
		url := fmt.Sprintf("%s/rules/%s/%s", strings.TrimRight(base, "/"), ruleTicket.ToText(), sourceTicket.ToText())
		if vec, ok := c.tryGetTargetTickets(url); ok {
			return vec, true
		}
	}
	return nil, false
}

func (c *Client) tryGetTargetTickets(url string) (state.FileStateVec, bool) {
	resp, err := c.http.Get(url)
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, false
	}

	var vec state.FileStateVec
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		t, err := ticket.ParseText(line)
		if err != nil {
			return nil, false
		}
		vec = append(vec, state.FileState{Ticket: t})
	}
	if err := scanner.Err(); err != nil {
		return nil, false
	}
	return vec, true
}
