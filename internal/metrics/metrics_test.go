package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordersIncrement(t *testing.T) {
	Register()
	Register()

	before := testutil.ToFloat64(loaderCounter.WithLabelValues("zarr", "ok"))
	RecordLoaderCreate("zarr", "ok")
	RecordLoaderCreate("zarr", "ok")
	require.Equal(t, before+2, testutil.ToFloat64(loaderCounter.WithLabelValues("zarr", "ok")))

	stale := testutil.ToFloat64(staleLoadCounter)
	RecordStaleLoad()
	require.Equal(t, stale+1, testutil.ToFloat64(staleLoadCounter))

	miss := testutil.ToFloat64(statsCacheCounter.WithLabelValues("miss"))
	RecordStatsCache("miss")
	require.Equal(t, miss+1, testutil.ToFloat64(statsCacheCounter.WithLabelValues("miss")))

	RecordManifestFetch("missing")
	require.GreaterOrEqual(t, testutil.ToFloat64(manifestCounter.WithLabelValues("missing")), 1.0)
}

func TestHandlerExposesRegistry(t *testing.T) {
	Register()
	RecordStaleLoad()

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "pyramidview_stale_load_discarded_total")
}
