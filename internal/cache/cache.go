// Package cache implements the local content-addressed blob store
// (spec §4.E): a "files" directory holding one entry per ticket and an
// "inbox" directory for in-progress writes, joined by atomic renames.
package cache

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"io"
	"path"
	"sort"

	"github.com/cespare/xxhash/v2"
	rulererrors "github.com/rulerbuild/ruler/internal/errors"
	"github.com/rulerbuild/ruler/internal/system"
	"github.com/rulerbuild/ruler/internal/ticket"
)

const inboxNameLength = 20

var alphanumeric = []byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")

// Cache is a content-addressed blob store rooted at a directory. The
// files subdirectory is created at open time; the invariant it exists
// whenever the Cache object exists holds from construction onward.
type Cache struct {
	sys       system.System
	root      string
	filesDir  string
	inboxDir  string
	prngState uint64
}

// Open roots a Cache at root, creating root/files and root/inbox.
func Open(sys system.System, root string) (*Cache, error) {
	filesDir := path.Join(root, "files")
	inboxDir := path.Join(root, "inbox")
	if err := sys.MkdirAll(filesDir); err != nil {
		return nil, rulererrors.Wrap("cache.Open", rulererrors.KindSystemError, err).WithPath(filesDir)
	}
	if err := sys.MkdirAll(inboxDir); err != nil {
		return nil, rulererrors.Wrap("cache.Open", rulererrors.KindSystemError, err).WithPath(inboxDir)
	}

	var seed [8]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, rulererrors.Wrap("cache.Open", rulererrors.KindSystemError, err)
	}

	return &Cache{
		sys:       sys,
		root:      root,
		filesDir:  filesDir,
		inboxDir:  inboxDir,
		prngState: binary.BigEndian.Uint64(seed[:]),
	}, nil
}

func (c *Cache) entryPath(t ticket.Ticket) string {
	return path.Join(c.filesDir, t.ToText())
}

// BackUpFile hashes the file at p and renames it into files/<ticket>,
// returning the ticket. Fails if p is missing or the rename fails.
func (c *Cache) BackUpFile(p string) (ticket.Ticket, error) {
	t, err := ticket.FromFile(c.sys, p)
	if err != nil {
		return ticket.Ticket{}, err
	}
	return t, c.BackUpFileWithTicket(t, p)
}

// BackUpFileWithTicket is BackUpFile for a caller-supplied, already
// computed ticket.
func (c *Cache) BackUpFileWithTicket(t ticket.Ticket, p string) error {
	dest := c.entryPath(t)
	if err := c.sys.Rename(p, dest); err != nil {
		return rulererrors.Wrap("cache.BackUpFile", rulererrors.KindSystemError, err).WithPath(p)
	}
	return nil
}

// RestoreOutcome is the closed set of results restoring from the
// cache can produce.
type RestoreOutcome int

const (
	Done RestoreOutcome = iota
	NotThere
)

// RestoreFile renames files/<ticket> to destPath if present.
func (c *Cache) RestoreFile(t ticket.Ticket, destPath string) (RestoreOutcome, error) {
	if !c.sys.IsDir(c.filesDir) {
		return NotThere, rulererrors.New("cache.RestoreFile", rulererrors.KindCacheDirectoryMissing).WithPath(c.filesDir)
	}
	src := c.entryPath(t)
	if !c.sys.IsFile(src) {
		return NotThere, nil
	}
	if err := c.sys.Rename(src, destPath); err != nil {
		return NotThere, rulererrors.Wrap("cache.RestoreFile", rulererrors.KindSystemError, err).WithPath(destPath)
	}
	return Done, nil
}

// Open returns a read-only handle to files/<ticket>.
func (c *Cache) Open(t ticket.Ticket) (io.ReadCloser, error) {
	if !c.sys.IsDir(c.filesDir) {
		return nil, rulererrors.New("cache.Open", rulererrors.KindCacheDirectoryMissing).WithPath(c.filesDir)
	}
	p := c.entryPath(t)
	if !c.sys.IsFile(p) {
		return nil, rulererrors.New("cache.Open", rulererrors.KindNotThere).WithPath(p)
	}
	f, err := c.sys.Open(p)
	if err != nil {
		return nil, rulererrors.Wrap("cache.Open", rulererrors.KindSystemError, err).WithPath(p)
	}
	return f, nil
}

// InboxWriter is a writable sink under inbox/ that computes its
// ticket while being written and, on Finish, renames itself into
// files/<ticket>.
type InboxWriter struct {
	cache *Cache
	path  string
	w     interface {
		Write([]byte) (int, error)
		Close() error
	}
	factory *ticket.Factory
}

// OpenInboxFile returns a writer with a random 20-character
// alphanumeric name under inbox/.
func (c *Cache) OpenInboxFile() (*InboxWriter, error) {
	name := c.randomName()
	p := path.Join(c.inboxDir, name)
	w, err := c.sys.Create(p)
	if err != nil {
		return nil, rulererrors.Wrap("cache.OpenInboxFile", rulererrors.KindSystemError, err).WithPath(p)
	}
	return &InboxWriter{cache: c, path: p, w: w, factory: ticket.NewFactory()}, nil
}

// Write absorbs bytes into both the file and the running ticket.
func (w *InboxWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	if n > 0 {
		w.factory.AbsorbBytes(p[:n])
	}
	return n, err
}

// Finish closes the inbox file, computes its ticket, and renames it
// into files/<ticket>.
func (w *InboxWriter) Finish() (ticket.Ticket, error) {
	if err := w.w.Close(); err != nil {
		return ticket.Ticket{}, rulererrors.Wrap("cache.InboxWriter.Finish", rulererrors.KindSystemError, err).WithPath(w.path)
	}
	t := w.factory.Result()
	if err := w.cache.sys.Rename(w.path, w.cache.entryPath(t)); err != nil {
		return ticket.Ticket{}, rulererrors.Wrap("cache.InboxWriter.Finish", rulererrors.KindSystemError, err).WithPath(w.path)
	}
	return t, nil
}

// List returns a lexicographically-ordered window of filenames under
// files/, starting at index start and spanning at most length entries.
func (c *Cache) List(start, length int) ([]string, error) {
	names, err := c.sys.ListDir(c.filesDir)
	if err != nil {
		return nil, rulererrors.Wrap("cache.List", rulererrors.KindSystemError, err).WithPath(c.filesDir)
	}
	sort.Strings(names)
	if start >= len(names) {
		return nil, nil
	}
	end := start + length
	if end > len(names) {
		end = len(names)
	}
	return names[start:end], nil
}

// randomName derives the next 20-character alphanumeric inbox
// filename from a xxhash-mixed PRNG seeded once from crypto/rand.
func (c *Cache) randomName() string {
	var b bytes.Buffer
	b.Grow(inboxNameLength)
	for i := 0; i < inboxNameLength; i++ {
		c.prngState = xxhash.Sum64(binary.BigEndian.AppendUint64(nil, c.prngState))
		b.WriteByte(alphanumeric[c.prngState%uint64(len(alphanumeric))])
	}
	return b.String()
}
