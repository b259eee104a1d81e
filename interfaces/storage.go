package interfaces

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrContentNotFound is returned when no backend holds the requested blob.
	ErrContentNotFound = errors.New("content not found")

	// ErrBackendUnavailable is returned when a storage backend cannot be
	// reached or refused the request.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrInvalidLocationURI is returned for malformed or unsupported storage
	// URIs. URIs have the form [scheme]://[auth@]host[:port][/path][?params].
	ErrInvalidLocationURI = errors.New("invalid storage location URI")
)

// ContentID is the SHA-256 hash of a stored blob. Backups are encrypted
// before they are stored, so the ID reveals nothing about the wallet.
type ContentID [32]byte

// ComputeID returns the content ID of data.
func ComputeID(data []byte) ContentID {
	return ContentID(sha256.Sum256(data))
}

// NewContentIDFromHex parses the 64-character hex form, with or without 0x.
func NewContentIDFromHex(source string) (ContentID, error) {
	clean := strings.TrimPrefix(source, "0x")
	if len(clean) != 2*len(ContentID{}) {
		return ContentID{}, fmt.Errorf("invalid content id %q: want %d hex characters", source, 2*len(ContentID{}))
	}

	var id ContentID
	if _, err := hex.Decode(id[:], []byte(clean)); err != nil {
		return ContentID{}, fmt.Errorf("invalid content id: %w", err)
	}
	return id, nil
}

func (id ContentID) String() string {
	return hex.EncodeToString(id[:])
}

func (id ContentID) Bytes() []byte {
	return id[:]
}

// ContentType selects the namespace a blob is stored under.
type ContentType int

const (
	// BackupType is an encrypted vault file.
	BackupType ContentType = iota
	// ShareType is an encoded or guardian-sealed secret share.
	ShareType
)

func (ct ContentType) String() string {
	switch ct {
	case BackupType:
		return "backup"
	case ShareType:
		return "share"
	default:
		return "unknown"
	}
}

// StorageBackendLocation is a validated storage URI from the configuration.
// Backend-specific parameters are parsed by the storage factory.
type StorageBackendLocation struct {
	Raw    string
	Scheme string
}

// NewStorageBackendLocation checks that uri parses and names a supported
// scheme: file, s3, ipfs or vault.
func NewStorageBackendLocation(uri string) (StorageBackendLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return StorageBackendLocation{}, fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	switch scheme {
	case "file", "s3", "ipfs", "vault":
	default:
		return StorageBackendLocation{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidLocationURI, parsed.Scheme)
	}

	return StorageBackendLocation{Raw: uri, Scheme: scheme}, nil
}

func (loc StorageBackendLocation) String() string {
	return loc.Raw
}

func (loc StorageBackendLocation) IsFile() bool {
	return loc.Scheme == "file"
}

// StorageBackend provides content-addressed storage for encrypted backups
// and sealed shares.
type StorageBackend interface {
	// Fetch returns ErrContentNotFound if id is not stored under contentType.
	Fetch(ctx context.Context, id ContentID, contentType ContentType) ([]byte, error)

	// Store saves data and returns its content ID. Storing the same data
	// again is not an error.
	Store(ctx context.Context, data []byte, contentType ContentType) (ContentID, error)

	Available(ctx context.Context) bool

	// Name identifies the backend in logs.
	Name() string

	// LocationURI identifies the backend; credentials are not included.
	LocationURI() string
}
