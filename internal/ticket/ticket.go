// Package ticket implements the content-addressing primitive the
// whole engine is built on: a Ticket is a SHA-512 digest with a
// URL-safe base64 textual form, produced by streaming content into a
// Factory.
package ticket

import (
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"hash"
	"io"

	rulererrors "github.com/rulerbuild/ruler/internal/errors"
	"github.com/rulerbuild/ruler/internal/system"
)

const Size = 64

// Ticket is an immutable 64-byte SHA-512 digest used as content
// identity throughout the engine (file contents, rules, source
// groups). Equality is byte-equality.
type Ticket struct {
	bytes [Size]byte
}

// Equal reports byte-equality between two tickets.
func (t Ticket) Equal(other Ticket) bool {
	return t.bytes == other.bytes
}

// ToText renders the ticket as URL-safe base64 with padding (88
// characters for a 64-byte digest).
func (t Ticket) ToText() string {
	return base64.URLEncoding.EncodeToString(t.bytes[:])
}

// ParseText is the inverse of ToText. Input that is not valid URL-safe
// base64, or that does not decode to exactly Size bytes, fails with a
// KindSystemError error.
func ParseText(text string) (Ticket, error) {
	decoded, err := base64.URLEncoding.DecodeString(text)
	if err != nil {
		return Ticket{}, rulererrors.Wrap("ticket.ParseText", rulererrors.KindSystemError, err)
	}
	if len(decoded) != Size {
		return Ticket{}, rulererrors.New("ticket.ParseText", rulererrors.KindSystemError)
	}
	var t Ticket
	copy(t.bytes[:], decoded)
	return t, nil
}

// Bytes exposes the raw digest (read-only use; callers must not
// mutate the returned slice's backing array by casting around this
// copy).
func (t Ticket) Bytes() [Size]byte { return t.bytes }

// GobEncode implements gob.GobEncoder so Ticket can be used directly
// as a map key or struct field in the state and history stores;
// gob otherwise has nothing to serialize since bytes is unexported.
func (t Ticket) GobEncode() ([]byte, error) {
	return t.bytes[:], nil
}

// GobDecode implements gob.GobDecoder, the inverse of GobEncode.
func (t *Ticket) GobDecode(data []byte) error {
	if len(data) != Size {
		return rulererrors.New("ticket.GobDecode", rulererrors.KindSystemError)
	}
	copy(t.bytes[:], data)
	return nil
}

// Factory incrementally absorbs bytes, strings, other tickets and
// file contents into one running SHA-512 digest.
type Factory struct {
	h hash.Hash
}

// NewFactory starts a fresh digest.
func NewFactory() *Factory {
	return &Factory{h: sha512.New()}
}

// AbsorbBytes feeds raw bytes into the digest.
func (f *Factory) AbsorbBytes(b []byte) *Factory {
	f.h.Write(b)
	return f
}

// AbsorbString feeds a UTF-8 string into the digest.
func (f *Factory) AbsorbString(s string) *Factory {
	f.h.Write([]byte(s))
	return f
}

// AbsorbTicket feeds another ticket's raw bytes into the digest
// (digest-of-digest, used for rule-tickets-of-rule-tickets and the
// sources-ticket).
func (f *Factory) AbsorbTicket(t Ticket) *Factory {
	f.h.Write(t.bytes[:])
	return f
}

// AbsorbFile streams a file's content into the digest 256 bytes at a
// time via the System abstraction, propagating the first I/O error.
func (f *Factory) AbsorbFile(sys system.System, path string) error {
	file, err := sys.Open(path)
	if err != nil {
		return rulererrors.Wrap("ticket.AbsorbFile", rulererrors.KindFileNotFound, err).WithPath(path)
	}
	defer file.Close()

	buf := make([]byte, 256)
	for {
		n, err := file.Read(buf)
		if n > 0 {
			f.h.Write(buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return rulererrors.Wrap("ticket.AbsorbFile", rulererrors.KindSystemError, err).WithPath(path)
		}
	}
}

// Result finalizes the digest into a Ticket. The Factory may continue
// to be used afterward (Result does not reset state); callers who
// want a fresh digest should call NewFactory again.
func (f *Factory) Result() Ticket {
	var t Ticket
	sum := f.h.Sum(nil)
	copy(t.bytes[:], sum)
	return t
}

// Empty is the ticket of the empty byte sequence, used as the
// sentinel "no ticket" value for an absent FileState.
func Empty() Ticket {
	return NewFactory().Result()
}

// FromFile is a convenience wrapper hashing a whole file in one call.
func FromFile(sys system.System, path string) (Ticket, error) {
	f := NewFactory()
	if err := f.AbsorbFile(sys, path); err != nil {
		return Ticket{}, err
	}
	return f.Result(), nil
}

// OfTickets combines an ordered sequence of tickets into one
// ticket-of-tickets (used for the sources-ticket, §4.K and GLOSSARY).
func OfTickets(tickets []Ticket) Ticket {
	f := NewFactory()
	for _, t := range tickets {
		f.AbsorbTicket(t)
	}
	return f.Result()
}
