package metrics

import (
    "net/http"
    "sync"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
    providerReqs = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "pdfquiz",
            Name:      "provider_requests_total",
            Help:      "Total provider requests by provider, model and result",
        },
        []string{"provider", "model", "result"},
    )

    providerLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "pdfquiz",
            Name:      "provider_request_duration_seconds",
            Help:      "Duration of provider requests by provider and model",
            Buckets:   prometheus.DefBuckets,
        },
        []string{"provider", "model"},
    )

    pagesExtracted = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "pdfquiz",
            Name:      "pages_extracted_total",
            Help:      "Pages extracted by method (text, ocr)",
        },
        []string{"method"},
    )

    rateLimited = prometheus.NewCounter(
        prometheus.CounterOpts{
            Namespace: "pdfquiz",
            Name:      "local_rate_limit_rejections_total",
            Help:      "Generation attempts rejected by the local sliding window",
        },
    )

    jobs = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "pdfquiz",
            Name:      "jobs_total",
            Help:      "Finished quiz jobs by result (success or error kind)",
        },
        []string{"result"},
    )

    jobsInFlight = prometheus.NewGauge(
        prometheus.GaugeOpts{
            Namespace: "pdfquiz",
            Name:      "jobs_in_flight",
            Help:      "Quiz jobs currently running",
        },
    )

    registerOnce sync.Once
)

// Init registers collectors. Safe to call more than once.
func Init() {
    registerOnce.Do(func() {
        prometheus.MustRegister(providerReqs, providerLatency, pagesExtracted, rateLimited, jobs, jobsInFlight)
    })
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveProvider(provider, model, result string, dur time.Duration) {
    providerReqs.WithLabelValues(provider, model, result).Inc()
    providerLatency.WithLabelValues(provider, model).Observe(dur.Seconds())
}

func IncPage(method string) { pagesExtracted.WithLabelValues(method).Inc() }
func IncRateLimited()       { rateLimited.Inc() }
func IncJob(result string)  { jobs.WithLabelValues(result).Inc() }
func JobStarted()           { jobsInFlight.Inc() }
func JobFinished()          { jobsInFlight.Dec() }
