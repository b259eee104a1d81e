package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultOK    = "ok"
	ResultError = "error"
)

// KernelMetrics are the wallet kernel counters. A nil *KernelMetrics is valid
// and records nothing, so components can be built without a registry.
type KernelMetrics struct {
	BorrowContention prometheus.Counter
	LoadedWallets    prometheus.Gauge
	VaultOperations  *prometheus.CounterVec
	ShareOperations  *prometheus.CounterVec
}

func NewKernelMetrics(namespace string, reg prometheus.Registerer) (*KernelMetrics, error) {
	m := &KernelMetrics{
		BorrowContention: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_borrow_contention_total",
			Help:      "Borrow attempts rejected because the wallet was already borrowed or busy.",
		}),
		LoadedWallets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "wallets_loaded",
			Help:      "Number of decrypted wallets held in memory.",
		}),
		VaultOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vault_operations_total",
			Help:      "Encrypted vault operations by operation and result.",
		}, []string{"op", "result"}),
		ShareOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "share_operations_total",
			Help:      "Secret sharing split and reconstruct operations by result.",
		}, []string{"op", "result"}),
	}

	for _, c := range []prometheus.Collector{m.BorrowContention, m.LoadedWallets, m.VaultOperations, m.ShareOperations} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

func (m *KernelMetrics) VaultOp(op string, err error) {
	if m == nil {
		return
	}
	m.VaultOperations.WithLabelValues(op, result(err)).Inc()
}

func (m *KernelMetrics) ShareOp(op string, err error) {
	if m == nil {
		return
	}
	m.ShareOperations.WithLabelValues(op, result(err)).Inc()
}

func (m *KernelMetrics) Contention() {
	if m == nil {
		return
	}
	m.BorrowContention.Inc()
}

func (m *KernelMetrics) WalletLoaded() {
	if m == nil {
		return
	}
	m.LoadedWallets.Inc()
}

func (m *KernelMetrics) WalletUnloaded() {
	if m == nil {
		return
	}
	m.LoadedWallets.Dec()
}
