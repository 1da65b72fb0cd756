// Package metrics exposes Prometheus collectors for the scraper.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	productsTotal            *prometheus.CounterVec
	keywordsTotal            *prometheus.CounterVec
	searchPagesTotal         prometheus.Counter
	reviewsCollectedTotal    prometheus.Counter
	reviewRoundsTotal        prometheus.Counter
	loadMoreClicksTotal      prometheus.Counter
	reviewStopsTotal         *prometheus.CounterVec
	checkpointSavesTotal     *prometheus.CounterVec
	activeWorkers            prometheus.Gauge
	navigationDelaySeconds   prometheus.Histogram
	rendererProvisionedTotal prometheus.Counter

	once sync.Once
)

// Init registers the collectors. It is safe to call this function multiple
// times; every Observe helper calls it as well.
func Init() {
	once.Do(func() {
		productsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_products_total",
				Help: "Products processed, labeled by outcome.",
			},
			[]string{"status"},
		)

		keywordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_keywords_total",
				Help: "Keywords finished, labeled by final state.",
			},
			[]string{"status"},
		)

		searchPagesTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "scraper_search_pages_total",
			Help: "Search result pages loaded.",
		})

		reviewsCollectedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "scraper_reviews_collected_total",
			Help: "Reviews attached to scraped products.",
		})

		reviewRoundsTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "scraper_review_rounds_total",
			Help: "Review collection rounds executed.",
		})

		loadMoreClicksTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "scraper_load_more_clicks_total",
			Help: "Load-more controls clicked.",
		})

		reviewStopsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_review_stops_total",
				Help: "Review collections finished, labeled by stop reason.",
			},
			[]string{"reason"},
		)

		checkpointSavesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_checkpoint_saves_total",
				Help: "Checkpoint save attempts, labeled by result.",
			},
			[]string{"result"},
		)

		activeWorkers = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "scraper_active_workers",
			Help: "Number of workers currently processing a keyword.",
		})

		navigationDelaySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "scraper_navigation_delay_seconds",
			Help:    "Histogram of pauses taken after navigations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		})

		rendererProvisionedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "scraper_renderers_provisioned_total",
			Help: "Renderer sessions created.",
		})
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

func ObserveProduct(status string) {
	Init()
	productsTotal.WithLabelValues(status).Inc()
}

func ObserveKeyword(status string) {
	Init()
	keywordsTotal.WithLabelValues(status).Inc()
}

func ObserveSearchPage() {
	Init()
	searchPagesTotal.Inc()
}

// ObserveReviewCollection records one finished review collection.
func ObserveReviewCollection(reason string, rounds, clicks, reviews int) {
	Init()
	reviewStopsTotal.WithLabelValues(reason).Inc()
	reviewRoundsTotal.Add(float64(rounds))
	loadMoreClicksTotal.Add(float64(clicks))
	reviewsCollectedTotal.Add(float64(reviews))
}

// ObserveCheckpointSave records a save; result is saved, skipped or failed.
func ObserveCheckpointSave(result string) {
	Init()
	checkpointSavesTotal.WithLabelValues(result).Inc()
}

func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

func ObserveNavigationDelay(d time.Duration) {
	Init()
	navigationDelaySeconds.Observe(d.Seconds())
}

func ObserveRendererProvisioned() {
	Init()
	rendererProvisionedTotal.Inc()
}
