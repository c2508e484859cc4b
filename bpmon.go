package bpmon

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/bpmon/internal/client"
	cfg "github.com/loykin/bpmon/internal/config"
	"github.com/loykin/bpmon/internal/metrics"
	"github.com/loykin/bpmon/internal/monitor"
	iapi "github.com/loykin/bpmon/internal/server"
	"github.com/loykin/bpmon/internal/store/factory"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Record = monitor.Record

type Kind = monitor.Kind

type InstanceSummary = monitor.InstanceSummary

type Store = monitor.Store

type ClientFactory = monitor.ClientFactory

type Client = client.Client

type ClientConfig = client.Config

type Config = cfg.Config

const (
	KindTask       = monitor.KindTask
	KindDefinition = monitor.KindDefinition
)

// Manager is a thin facade over internal/monitor.Manager.
// It provides a stable public API for embedding.

type Manager struct{ inner *monitor.Manager }

// NewManager builds a manager over the given store and client factory.
func NewManager(store Store, clients ClientFactory, opts ...monitor.Option) *Manager {
	return &Manager{inner: monitor.NewManager(store, clients, opts...)}
}

// WithCheckTimeout bounds each reconciliation cycle's upstream calls.
func WithCheckTimeout(d time.Duration) monitor.Option { return monitor.WithCheckTimeout(d) }

func (m *Manager) Start() { m.inner.Start() }
func (m *Manager) Stop()  { m.inner.Stop() }
func (m *Manager) AddMonitor(id string, kind Kind, intervalSeconds int) Record {
	return m.inner.AddMonitor(id, kind, intervalSeconds)
}
func (m *Manager) RemoveMonitor(id string) { m.inner.RemoveMonitor(id) }
func (m *Manager) UpdateInterval(id string, intervalSeconds int) (Record, bool) {
	return m.inner.UpdateInterval(id, intervalSeconds)
}
func (m *Manager) CheckNow(ctx context.Context, id string) (Record, bool) {
	return m.inner.CheckNow(ctx, id)
}
func (m *Manager) Get(id string) (Record, bool) { return m.inner.Get(id) }
func (m *Manager) Monitors() []Record           { return m.inner.Monitors() }
func (m *Manager) Serialize() map[string]Record { return m.inner.Serialize() }

// NewClient builds an upstream API client.
func NewClient(c ClientConfig) (*Client, error) { return client.New(c) }

// NewStore selects a store backend from a DSN (file path, file://,
// sqlite://, postgres://).
func NewStore(dsn string) (Store, error) { return factory.NewFromDSN(dsn) }

// LoadConfig reads and validates a TOML config file.
func LoadConfig(path string) (*Config, error) { return cfg.Load(path) }

// NewHTTPServer starts an HTTP server exposing the monitor API using the
// given manager and client factory.
func NewHTTPServer(addr, basePath string, m *Manager, clients ClientFactory) (*http.Server, error) {
	return iapi.NewServer(addr, basePath, m.inner, clients)
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics starts an HTTP server on addr exposing /metrics using the
// default registry. It returns any immediate listen error; otherwise it
// runs the server in the caller goroutine.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}
