// Package metrics owns the process Prometheus registry, the metrics HTTP
// server and the counters exported by the wallet kernel.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type MetricsServer struct {
	registry *prometheus.Registry
	srv      *http.Server

	Kernel *KernelMetrics
}

// New creates a private registry with Go runtime and process collectors plus
// the kernel metrics under namespace. addr may be empty when the server is
// never started.
func New(namespace, addr string) (*MetricsServer, error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}

	kernel, err := NewKernelMetrics(namespace, registry)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	return &MetricsServer{
		registry: registry,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		Kernel: kernel,
	}, nil
}

// Registry exposes the registry for tests and additional collectors.
func (s *MetricsServer) Registry() *prometheus.Registry {
	return s.registry
}

func (s *MetricsServer) ListenAndServe() error {
	if s.srv.Addr == "" {
		return errors.New("metrics server has no listen address")
	}
	return s.srv.ListenAndServe()
}

func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
