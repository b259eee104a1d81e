package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ruteri/wallet-kernel/interfaces"
	"golang.org/x/sync/errgroup"
)

// MultiStorageBackend replicates backups to every available backend and
// fetches from the first one that has the content.
type MultiStorageBackend struct {
	backends []interfaces.StorageBackend
	log      *slog.Logger
}

func NewMultiStorageBackend(backends []interfaces.StorageBackend, logger *slog.Logger) *MultiStorageBackend {
	if logger == nil {
		logger = slog.Default()
	}

	return &MultiStorageBackend{
		backends: backends,
		log:      logger,
	}
}

// Fetch tries backends in order. Content that fails its hash check is
// skipped, so a tampered replica cannot shadow a good one.
func (m *MultiStorageBackend) Fetch(ctx context.Context, id interfaces.ContentID, contentType interfaces.ContentType) ([]byte, error) {
	start := time.Now()
	var errs []error
	contentIDStr := id.String()[:16]
	notFound := 0

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable",
				slog.String("backend_name", backend.Name()),
				slog.String("content_id", contentIDStr))
			continue
		}

		data, err := backend.Fetch(ctx, id, contentType)
		if err == nil && interfaces.ComputeID(data) != id {
			err = fmt.Errorf("content hash mismatch")
		}
		if err == nil {
			m.log.Info("Successfully fetched content",
				slog.String("backend_name", backend.Name()),
				slog.String("content_id", contentIDStr),
				slog.Duration("duration", time.Since(start)))
			return data, nil
		}

		if errors.Is(err, interfaces.ErrContentNotFound) {
			notFound++
		}
		errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
		m.log.Debug("Failed to fetch from backend",
			slog.String("backend_name", backend.Name()),
			slog.String("content_id", contentIDStr),
			"err", err)
	}

	if len(errs) > 0 && notFound == len(errs) {
		return nil, interfaces.ErrContentNotFound
	}
	if len(errs) == 0 {
		return nil, interfaces.ErrBackendUnavailable
	}

	m.log.Error("All backends failed to fetch content",
		slog.String("content_id", contentIDStr),
		slog.Int("failed_backends", len(errs)),
		slog.Duration("duration", time.Since(start)))

	return nil, fmt.Errorf("all backends failed to fetch %s: %w", contentIDStr, errors.Join(errs...))
}

// Store writes to all available backends concurrently and succeeds if at
// least one write succeeds.
func (m *MultiStorageBackend) Store(ctx context.Context, data []byte, contentType interfaces.ContentType) (interfaces.ContentID, error) {
	start := time.Now()
	id := interfaces.ComputeID(data)

	var (
		mu        sync.Mutex
		errs      []error
		successes int
		g         errgroup.Group
	)
	g.SetLimit(4)

	for _, backend := range m.backends {
		g.Go(func() error {
			if !backend.Available(ctx) {
				m.log.Debug("Backend unavailable", slog.String("backend_name", backend.Name()))
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), interfaces.ErrBackendUnavailable))
				mu.Unlock()
				return nil
			}

			storedID, err := backend.Store(ctx, data, contentType)
			if err == nil && storedID != id {
				err = fmt.Errorf("backend returned id %s", storedID)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
				m.log.Debug("Failed to store to backend",
					slog.String("backend_name", backend.Name()),
					"err", err)
				return nil
			}
			successes++
			return nil
		})
	}
	_ = g.Wait()

	if successes == 0 {
		m.log.Error("All backends failed to store data",
			slog.Int("failed_backends", len(errs)),
			slog.Duration("duration", time.Since(start)))
		return id, fmt.Errorf("all backends failed to store data: %w", errors.Join(errs...))
	}

	m.log.Info("Stored content",
		slog.String("content_id", id.String()[:16]),
		slog.Int("replicas", successes),
		slog.Int("failed_backends", len(errs)),
		slog.Duration("duration", time.Since(start)))

	return id, nil
}

// Available checks if any backend is available
func (m *MultiStorageBackend) Available(ctx context.Context) bool {
	for _, backend := range m.backends {
		if backend.Available(ctx) {
			return true
		}
	}
	return false
}

func (m *MultiStorageBackend) Name() string {
	return "multi-storage"
}

func (m *MultiStorageBackend) LocationURI() string {
	var locations []string
	for _, backend := range m.backends {
		locations = append(locations, backend.LocationURI())
	}

	return "multi:[" + strings.Join(locations, ",") + "]"
}
