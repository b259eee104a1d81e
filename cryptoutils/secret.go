package cryptoutils

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
)

const redacted = "[REDACTED]"

// Secret wraps sensitive bytes so that formatting, JSON/text encoding and
// structured logging never print them. Raw access goes through Reveal, and
// the backing array is scrubbed with Zero.
//
// Zeroing is best effort: the Go runtime may have copied the bytes (growing
// slices, string conversions) before Zero runs.
type Secret []byte

// SecretFromBytes copies in into a new Secret.
func SecretFromBytes(in []byte) Secret {
	out := make([]byte, len(in))
	copy(out, in)
	return Secret(out)
}

// SecretFromString copies in into a new Secret. The string itself cannot be
// scrubbed.
func SecretFromString(in string) Secret {
	return Secret([]byte(in))
}

func (s Secret) String() string { return redacted }

func (s Secret) GoString() string { return redacted }

// Format implements fmt.Formatter so %v, %+v, %#v, %s, %x all redact.
func (s Secret) Format(f fmt.State, _ rune) {
	_, _ = io.WriteString(f, redacted)
}

func (s Secret) MarshalJSON() ([]byte, error) { return json.Marshal(redacted) }

func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }

func (s Secret) LogValue() slog.Value { return slog.StringValue(redacted) }

// Reveal returns the underlying bytes without copying. Callers must not
// retain the slice beyond the lifetime of the Secret.
func (s Secret) Reveal() []byte { return []byte(s) }

// Clone returns an independent copy that must be zeroed separately.
func (s Secret) Clone() Secret { return SecretFromBytes(s) }

func (s Secret) Len() int { return len(s) }

func (s Secret) IsEmpty() bool { return len(s) == 0 }

// Equal compares in constant time with respect to the contents.
func (s Secret) Equal(other Secret) bool {
	return subtle.ConstantTimeCompare(s, other) == 1
}

// Zero overwrites the backing array.
func (s Secret) Zero() {
	clear(s)
}

// Use runs fn over the underlying bytes without copying.
func (s Secret) Use(fn func([]byte) error) error {
	return fn(s)
}

// ZeroBytes overwrites a plain byte slice.
func ZeroBytes(b []byte) {
	clear(b)
}
