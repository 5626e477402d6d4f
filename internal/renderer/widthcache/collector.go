package widthcache

import "github.com/prometheus/client_golang/prometheus"

// Collector exports the counters of a Cache as Prometheus metrics.
type Collector struct {
	cache *Cache

	entries *prometheus.Desc
	hits    *prometheus.Desc
	misses  *prometheus.Desc
	clears  *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector for c. constLabels tell caches apart
// when several are registered.
func NewCollector(namespace string, c *Cache, constLabels prometheus.Labels) *Collector {
	name := func(n string) string {
		return prometheus.BuildFQName(namespace, "width_cache", n)
	}
	return &Collector{
		cache:   c,
		entries: prometheus.NewDesc(name("entries"), "Number of line slots in the cache window.", nil, constLabels),
		hits:    prometheus.NewDesc(name("hits_total"), "Width lookups answered from the cache.", nil, constLabels),
		misses:  prometheus.NewDesc(name("misses_total"), "Width lookups that found no cached width.", nil, constLabels),
		clears:  prometheus.NewDesc(name("clears_total"), "Times the whole cache was cleared.", nil, constLabels),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entries
	ch <- c.hits
	ch <- c.misses
	ch <- c.clears
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.cache.Stats()
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(s.Entries))
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.Misses))
	ch <- prometheus.MustNewConstMetric(c.clears, prometheus.CounterValue, float64(s.Clears))
}
