package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKernelMetrics(t *testing.T) {
	m, err := NewKernelMetrics("test", prometheus.NewRegistry())
	require.NoError(t, err)

	m.VaultOp("open", nil)
	m.VaultOp("open", errors.New("boom"))
	m.VaultOp("open", nil)
	m.Contention()
	m.WalletLoaded()
	m.WalletLoaded()
	m.WalletUnloaded()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.VaultOperations.WithLabelValues("open", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VaultOperations.WithLabelValues("open", ResultError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BorrowContention))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoadedWallets))
}

func TestNilKernelMetrics(t *testing.T) {
	var m *KernelMetrics
	assert.NotPanics(t, func() {
		m.VaultOp("save", nil)
		m.ShareOp("split", nil)
		m.Contention()
		m.WalletLoaded()
		m.WalletUnloaded()
	})
}

func TestMetricsServerHandler(t *testing.T) {
	srv, err := New("wallet_kernel", "")
	require.NoError(t, err)

	srv.Kernel.ShareOp("split", nil)

	rec := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `wallet_kernel_share_operations_total{op="split",result="ok"} 1`)

	require.Error(t, srv.ListenAndServe(), "An empty address must not start a listener")
}
