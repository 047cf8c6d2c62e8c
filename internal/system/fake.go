package system

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// Fake is an in-memory System used throughout the test suite so
// cache, ticket and build-scheduler tests never touch a real
// filesystem or spawn a real process. It models files as byte slices
// keyed by a slash-normalized path, and "directories" implicitly —
// any prefix of a file path that ends in "/" is considered a
// directory.
type Fake struct {
	mu        sync.Mutex
	files     map[string][]byte
	mtimes    map[string]time.Time
	execBits  map[string]bool
	dirs      map[string]bool
	clock     time.Time
	// scripts maps commandLine[0] to a handler used by Execute, so
	// tests can stand in for "mycat", "error" and similar fixture
	// commands without touching the real OS.
	scripts map[string]func(args []string) (CommandLineOutput, error)
}

// NewFake constructs an empty Fake system.
func NewFake() *Fake {
	return &Fake{
		files:    make(map[string][]byte),
		mtimes:   make(map[string]time.Time),
		execBits: make(map[string]bool),
		dirs:     make(map[string]bool),
		clock:    time.Unix(0, 0),
		scripts:  make(map[string]func([]string) (CommandLineOutput, error)),
	}
}

func clean(p string) string {
	return path.Clean(strings.ReplaceAll(p, "\\", "/"))
}

// WriteFile seeds a file's content directly, bumping its mtime. Tests
// use this to set up a workspace before driving the engine.
func (f *Fake) WriteFile(p, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeLocked(p, []byte(content))
}

func (f *Fake) writeLocked(p string, content []byte) {
	p = clean(p)
	f.clock = f.clock.Add(time.Microsecond)
	f.files[p] = content
	f.mtimes[p] = f.clock
}

// RegisterScript installs a fake command handler invoked by Execute
// when commandLine[0] matches name.
func (f *Fake) RegisterScript(name string, handler func(args []string) (CommandLineOutput, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[name] = handler
}

type fakeFile struct {
	*bytes.Reader
}

func (fakeFile) Close() error { return nil }

type fakeWriter struct {
	f    *Fake
	path string
	buf  bytes.Buffer
}

func (w *fakeWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *fakeWriter) Close() error {
	w.f.mu.Lock()
	defer w.f.mu.Unlock()
	w.f.writeLocked(w.path, append([]byte(nil), w.buf.Bytes()...))
	return nil
}

func (f *Fake) Open(p string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = clean(p)
	content, ok := f.files[p]
	if !ok {
		return nil, fmt.Errorf("open %s: no such file", p)
	}
	return fakeFile{bytes.NewReader(content)}, nil
}

func (f *Fake) Create(p string) (io.WriteCloser, error) {
	return &fakeWriter{f: f, path: clean(p)}, nil
}

func (f *Fake) MkdirAll(p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirs[clean(p)] = true
	return nil
}

func (f *Fake) IsDir(p string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = clean(p)
	if f.dirs[p] {
		return true
	}
	prefix := p + "/"
	for existing := range f.files {
		if strings.HasPrefix(existing, prefix) {
			return true
		}
	}
	return false
}

func (f *Fake) IsFile(p string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[clean(p)]
	return ok
}

func (f *Fake) Remove(p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = clean(p)
	if _, ok := f.files[p]; !ok {
		return fmt.Errorf("remove %s: no such file", p)
	}
	delete(f.files, p)
	delete(f.mtimes, p)
	delete(f.execBits, p)
	return nil
}

func (f *Fake) RemoveAll(p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = clean(p)
	prefix := p + "/"
	for existing := range f.files {
		if existing == p || strings.HasPrefix(existing, prefix) {
			delete(f.files, existing)
			delete(f.mtimes, existing)
			delete(f.execBits, existing)
		}
	}
	for existing := range f.dirs {
		if existing == p || strings.HasPrefix(existing, prefix) {
			delete(f.dirs, existing)
		}
	}
	return nil
}

func (f *Fake) Rename(from, to string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	from, to = clean(from), clean(to)
	content, ok := f.files[from]
	if !ok {
		return fmt.Errorf("rename %s: no such file", from)
	}
	f.clock = f.clock.Add(time.Microsecond)
	f.files[to] = content
	f.mtimes[to] = f.mtimes[from]
	f.execBits[to] = f.execBits[from]
	delete(f.files, from)
	delete(f.mtimes, from)
	delete(f.execBits, from)
	return nil
}

func (f *Fake) ModTime(p string) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = clean(p)
	mtime, ok := f.mtimes[p]
	if !ok {
		return time.Time{}, fmt.Errorf("stat %s: no such file", p)
	}
	return mtime, nil
}

func (f *Fake) IsExecutable(p string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = clean(p)
	if _, ok := f.files[p]; !ok {
		return false, fmt.Errorf("stat %s: no such file", p)
	}
	return f.execBits[p], nil
}

func (f *Fake) SetExecutable(p string, executable bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = clean(p)
	if _, ok := f.files[p]; !ok {
		return fmt.Errorf("chmod %s: no such file", p)
	}
	f.execBits[p] = executable
	return nil
}

// ListDir returns the base names of dir's immediate file entries.
func (f *Fake) ListDir(dir string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := clean(dir) + "/"
	seen := make(map[string]bool)
	var names []string
	for existing := range f.files {
		if !strings.HasPrefix(existing, prefix) {
			continue
		}
		rest := strings.TrimPrefix(existing, prefix)
		name := rest
		if idx := strings.Index(rest, "/"); idx >= 0 {
			name = rest[:idx]
		}
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names, nil
}

// Execute dispatches to a registered script. Unregistered commands
// fail the way a missing executable would.
func (f *Fake) Execute(commandLine []string) (CommandLineOutput, error) {
	if len(commandLine) == 0 {
		return CommandLineOutput{Success: true, HasCode: true, Code: 0}, nil
	}
	f.mu.Lock()
	handler, ok := f.scripts[commandLine[0]]
	f.mu.Unlock()
	if !ok {
		return CommandLineOutput{}, fmt.Errorf("no such command: %s", commandLine[0])
	}
	return handler(commandLine[1:])
}

// ListPaths returns every file path currently stored, sorted.
func (f *Fake) ListPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	paths := make([]string, 0, len(f.files))
	for p := range f.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
