package widthcache

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	c := New()
	c.Set(4, 2)
	c.Set(6, 3)
	c.TryGet(4)
	c.TryGet(5)
	c.TryGet(6)

	col := NewCollector("linecore", c, prometheus.Labels{"view": "main"})
	assert.Equal(t, 4, testutil.CollectAndCount(col))

	const want = `
# HELP linecore_width_cache_entries Number of line slots in the cache window.
# TYPE linecore_width_cache_entries gauge
linecore_width_cache_entries{view="main"} 3
# HELP linecore_width_cache_hits_total Width lookups answered from the cache.
# TYPE linecore_width_cache_hits_total counter
linecore_width_cache_hits_total{view="main"} 2
# HELP linecore_width_cache_misses_total Width lookups that found no cached width.
# TYPE linecore_width_cache_misses_total counter
linecore_width_cache_misses_total{view="main"} 1
`
	require.NoError(t, testutil.CollectAndCompare(col, strings.NewReader(want),
		"linecore_width_cache_entries", "linecore_width_cache_hits_total", "linecore_width_cache_misses_total"))
}

func TestCollectorRegisters(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(NewCollector("linecore", New(), nil)))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 4)
}
