package storage

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/ruteri/wallet-kernel/interfaces"
)

// StorageBackendFactory creates backup backends from location URIs.
type StorageBackendFactory struct {
	log *slog.Logger
}

func NewStorageBackendFactory(logger *slog.Logger) *StorageBackendFactory {
	return &StorageBackendFactory{
		log: logger,
	}
}

// StorageBackendFor creates a storage backend from a location URI of the form
// [scheme]://[auth@]host[:port][/path][?params].
//
// Supported schemes:
//   - file:// - Local filesystem storage
//   - s3:// - Amazon S3 or compatible object storage
//   - ipfs:// - IPFS node (MFS)
//   - vault:// - HashiCorp Vault KV v2
func (sf *StorageBackendFactory) StorageBackendFor(locationURI interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	u, err := url.Parse(locationURI.Raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidLocationURI, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "ipfs":
		return sf.createIPFSBackend(u)
	case "s3":
		return sf.createS3Backend(u)
	case "file":
		return sf.createFileBackend(u)
	case "vault":
		return sf.createVaultBackend(u)
	default:
		return nil, fmt.Errorf("%w: unsupported backend scheme %s", interfaces.ErrInvalidLocationURI, u.Scheme)
	}
}

// CreateMultiBackend aggregates every backend that could be created. It fails
// only if none could.
func (sf *StorageBackendFactory) CreateMultiBackend(locationURIs []interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	backends := make([]interfaces.StorageBackend, 0, len(locationURIs))

	for _, uri := range locationURIs {
		backend, err := sf.StorageBackendFor(uri)
		if err != nil {
			sf.log.Warn("Failed to create storage backend",
				"err", err,
				slog.String("locationURI", redactURI(uri.Raw)))
			continue
		}
		backends = append(backends, backend)
	}

	if len(backends) == 0 {
		return nil, fmt.Errorf("no valid storage backends created")
	}

	return NewMultiStorageBackend(backends, sf.log), nil
}

// createIPFSBackend handles ipfs://host:port/root?timeout=30s
func (sf *StorageBackendFactory) createIPFSBackend(u *url.URL) (interfaces.StorageBackend, error) {
	sf.log.Debug("Creating IPFS backend", slog.String("uri", u.String()))

	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "5001"
	}

	timeout := 30 * time.Second
	if raw := u.Query().Get("timeout"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid timeout %q", interfaces.ErrInvalidLocationURI, raw)
		}
		timeout = parsed
	}

	return NewIPFSBackend(host, port, u.Path, timeout, sf.log)
}

// createS3Backend handles
// s3://[ACCESS_KEY:SECRET_KEY@]bucket-name/prefix?region=us-west-2&endpoint=custom.s3.com
func (sf *StorageBackendFactory) createS3Backend(u *url.URL) (interfaces.StorageBackend, error) {
	sf.log.Debug("Creating S3 backend", slog.String("uri", redactURI(u.String())))

	if u.Host == "" {
		return nil, fmt.Errorf("%w: s3 URI without bucket", interfaces.ErrInvalidLocationURI)
	}

	query := u.Query()
	region := query.Get("region")
	if region == "" {
		region = "us-east-1"
	}

	var accessKey, secretKey string
	if u.User != nil {
		accessKey = u.User.Username()
		secretKey, _ = u.User.Password()
	}

	return NewS3Backend(u.Host, strings.TrimPrefix(u.Path, "/"), region, query.Get("endpoint"), accessKey, secretKey, sf.log)
}

// createFileBackend handles file:///absolute/path and file://./relative/path
func (sf *StorageBackendFactory) createFileBackend(u *url.URL) (interfaces.StorageBackend, error) {
	sf.log.Debug("Creating file backend", slog.String("uri", u.String()))

	path := u.Path
	if u.Host != "" {
		path = u.Host + "/" + strings.TrimPrefix(path, "/")
	}
	if path == "" {
		return nil, fmt.Errorf("%w: empty path in file URI %s", interfaces.ErrInvalidLocationURI, u.String())
	}

	return NewFileBackend(path, sf.log)
}

// createVaultBackend handles vault://[token@]host:port/mount/path?insecure=true
// The first path segment is the KV v2 mount, the rest is the data path.
func (sf *StorageBackendFactory) createVaultBackend(u *url.URL) (interfaces.StorageBackend, error) {
	sf.log.Debug("Creating Vault backend", slog.String("uri", redactURI(u.String())))

	parts := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("%w: expected vault://host/mount/path", interfaces.ErrInvalidLocationURI)
	}

	scheme := "https"
	if u.Query().Get("insecure") == "true" {
		scheme = "http"
	}

	var token string
	if u.User != nil {
		token = u.User.Username()
	}

	return NewVaultBackend(fmt.Sprintf("%s://%s", scheme, u.Host), parts[0], parts[1], token, sf.log)
}

// redactURI strips credentials before a URI is logged.
func redactURI(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = url.User("***")
	return u.String()
}
