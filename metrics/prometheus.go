package metrics

import (
	"fmt"
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

// PromRecorder implements Recorder on a Prometheus registry.
type PromRecorder struct {
	registry          *prom.Registry
	queriesTotal      *prom.CounterVec
	querySeconds      prom.Histogram
	queryResults      prom.Histogram
	ingestsTotal      *prom.CounterVec
	entitiesIngested  prom.Counter
	ingestSeconds     prom.Histogram
	generationsTotal  *prom.CounterVec
	generationSeconds prom.Histogram
}

// NewPrometheus creates a recorder backed by its own registry.
func NewPrometheus() *PromRecorder {
	registry := prom.NewRegistry()
	p := &PromRecorder{
		registry: registry,
		queriesTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "atlas_queries_total",
			Help: "Total number of retrieval queries",
		}, []string{"outcome"}),
		querySeconds: prom.NewHistogram(prom.HistogramOpts{
			Name:    "atlas_query_seconds",
			Help:    "Retrieval query duration in seconds",
			Buckets: prom.DefBuckets,
		}),
		queryResults: prom.NewHistogram(prom.HistogramOpts{
			Name:    "atlas_query_results",
			Help:    "Number of ranked results per query",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}),
		ingestsTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "atlas_ingests_total",
			Help: "Total number of ingestion batches",
		}, []string{"success"}),
		entitiesIngested: prom.NewCounter(prom.CounterOpts{
			Name: "atlas_entities_ingested_total",
			Help: "Total number of entities ingested",
		}),
		ingestSeconds: prom.NewHistogram(prom.HistogramOpts{
			Name:    "atlas_ingest_seconds",
			Help:    "Ingestion batch duration in seconds",
			Buckets: prom.DefBuckets,
		}),
		generationsTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "atlas_generations_total",
			Help: "Total number of answer generations",
		}, []string{"outcome"}),
		generationSeconds: prom.NewHistogram(prom.HistogramOpts{
			Name:    "atlas_generation_seconds",
			Help:    "Answer generation duration in seconds",
			Buckets: prom.DefBuckets,
		}),
	}

	registry.MustRegister(
		p.queriesTotal, p.querySeconds, p.queryResults,
		p.ingestsTotal, p.entitiesIngested, p.ingestSeconds,
		p.generationsTotal, p.generationSeconds,
	)
	return p
}

// ObserveQuery records one retrieval run.
func (p *PromRecorder) ObserveQuery(outcome string, seconds float64, results int) {
	p.queriesTotal.WithLabelValues(outcome).Inc()
	p.querySeconds.Observe(seconds)
	p.queryResults.Observe(float64(results))
}

// ObserveIngest records one ingestion batch.
func (p *PromRecorder) ObserveIngest(entities int, success bool, seconds float64) {
	p.ingestsTotal.WithLabelValues(fmt.Sprintf("%t", success)).Inc()
	if success {
		p.entitiesIngested.Add(float64(entities))
	}
	p.ingestSeconds.Observe(seconds)
}

// ObserveGeneration records one answer generation.
func (p *PromRecorder) ObserveGeneration(outcome string, seconds float64) {
	p.generationsTotal.WithLabelValues(outcome).Inc()
	p.generationSeconds.Observe(seconds)
}

// Serve exposes /metrics and /healthz on addr in a background goroutine.
func (p *PromRecorder) Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	go func() { _ = http.ListenAndServe(addr, mux) }()
}
