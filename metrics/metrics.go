package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics expõe a observabilidade do registro de imóveis.
type Metrics struct {
	// Resultado das operações por nome e desfecho ("ok" ou o tipo de erro)
	Operations *prometheus.CounterVec

	// Latência das operações de escrita e leitura
	OperationLatency *prometheus.HistogramVec

	// Consultas a imóveis atendidas pelo cache
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	PropertiesMinted prometheus.Counter
}

// New registra as métricas no registerer informado. Com nil usa o registro
// padrão do Prometheus.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "imovelnft_operations_total",
			Help: "Total de operações do registro por nome e resultado",
		}, []string{"operation", "result"}),

		OperationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "imovelnft_operation_duration_seconds",
			Help:    "Duração das operações do registro, incluindo o armazenamento",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),

		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "imovelnft_property_cache_hits_total",
			Help: "Consultas de imóveis respondidas pelo cache",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "imovelnft_property_cache_misses_total",
			Help: "Consultas de imóveis que precisaram ir ao armazenamento",
		}),

		PropertiesMinted: factory.NewCounter(prometheus.CounterOpts{
			Name: "imovelnft_properties_minted_total",
			Help: "Imóveis tokenizados com sucesso",
		}),
	}
}

// ObserveOperation registra a duração e o resultado de uma operação.
func (m *Metrics) ObserveOperation(operation, result string, d time.Duration) {
	if m != nil {
		m.Operations.WithLabelValues(operation, result).Inc()
		m.OperationLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementMinted() {
	if m != nil {
		m.PropertiesMinted.Inc()
	}
}

func (m *Metrics) IncrementCacheHit() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

func (m *Metrics) IncrementCacheMiss() {
	if m != nil {
		m.CacheMisses.Inc()
	}
}
