package mirror

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rulerbuild/ruler/internal/cache"
	rulererrors "github.com/rulerbuild/ruler/internal/errors"
	"github.com/rulerbuild/ruler/internal/history"
	"github.com/rulerbuild/ruler/internal/metrics"
	"github.com/rulerbuild/ruler/internal/ticket"
)

// Server answers the mirror HTTP interface (spec §6, component M):
// file bytes by ticket, and a rule's remembered target tickets by
// (rule-ticket, sources-ticket). PUT /files/{ticket} is disabled by
// default — the core build path never writes to a mirror (§1
// non-goals); a deployment opts a mirror into accepting pushes from
// the uploader (component N) via AllowUploads.
type Server struct {
	cache        *cache.Cache
	history      *history.Store
	metrics      *metrics.Registry
	AllowUploads bool
}

// NewServer builds a Server backed by a local cache and history
// store.
func NewServer(c *cache.Cache, h *history.Store, m *metrics.Registry) *Server {
	return &Server{cache: c, history: h, metrics: m}
}

// Handler returns the net/http.Handler exposing /files/, /rules/ and
// /metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/files/", s.handleFile)
	mux.HandleFunc("/rules/", s.handleRule)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	return mux
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	text := strings.TrimPrefix(r.URL.Path, "/files/")
	t, err := ticket.ParseText(text)
	if err != nil {
		http.Error(w, "malformed ticket", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.serveFile(w, r, t)
	case http.MethodPut:
		s.acceptUpload(w, r, t)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, t ticket.Ticket) {
	f, err := s.cache.Open(t)
	if err != nil {
		if rulererrors.Is(err, rulererrors.KindNotThere) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	io.Copy(w, f)
}

func (s *Server) acceptUpload(w http.ResponseWriter, r *http.Request, t ticket.Ticket) {
	if !s.AllowUploads {
		http.Error(w, "uploads disabled", http.StatusForbidden)
		return
	}

	inbox, err := s.cache.OpenInboxFile()
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if _, err := io.Copy(inbox, r.Body); err != nil {
		http.Error(w, "upload failed", http.StatusInternalServerError)
		return
	}
	got, err := inbox.Finish()
	if err != nil {
		http.Error(w, "upload failed", http.StatusInternalServerError)
		return
	}
	if !got.Equal(t) {
		http.Error(w, "uploaded content does not match ticket in URL", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleRule(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/rules/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		http.Error(w, "expected /rules/{ruleTicket}/{sourceTicket}", http.StatusBadRequest)
		return
	}

	ruleTicket, err := ticket.ParseText(parts[0])
	if err != nil {
		http.Error(w, "malformed rule ticket", http.StatusBadRequest)
		return
	}
	sourceTicket, err := ticket.ParseText(parts[1])
	if err != nil {
		http.Error(w, "malformed source ticket", http.StatusBadRequest)
		return
	}

	ruleHistory, err := s.history.Read(ruleTicket)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	targets, ok := ruleHistory.Get(sourceTicket)
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	for _, fs := range targets {
		fmt.Fprintln(w, fs.Ticket.ToText())
	}
}
