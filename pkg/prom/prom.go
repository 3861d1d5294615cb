package prom

import (
	"fmt"
	"strings"
	"sync"

	xhttp "github.com/ledgerkraft/bookkeeping/pkg/http"
	"github.com/ledgerkraft/bookkeeping/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const (
	SystemIngestion = "ingestion"
	SystemImports   = "imports"
)

const (
	MetricIngestionInserted    = "transactions_inserted_total"
	MetricIngestionDuplicates  = "transactions_duplicate_total"
	MetricIngestionCorrections = "corrections_total"
	MetricIngestionFailures    = "failures_total"
	MetricIngestionDuration    = "duration_seconds"
	MetricImportEvents         = "events_processed_total"
	MetricEventDuration        = "event_duration_seconds"
	MetricQueueDepth           = "queue_depth"
)

var lockCreateMetricLock = &sync.Mutex{}
var namespace = "none"

var MetricSystemEnabled = false

var MetricCollectionCounters = make(map[string]prometheus.Counter)
var MetricCollectionCounterVec = make(map[string]*prometheus.CounterVec)
var MetricCollectionGaugeVec = make(map[string]*prometheus.GaugeVec)
var MetricCollectionHistogram = make(map[string]prometheus.Histogram)
var MetricCollectionHistogramVec = make(map[string]*prometheus.HistogramVec)

var defaultLabels prometheus.Labels

// registerer is swapped in tests to avoid clashing with the global registry.
var registerer prometheus.Registerer = prometheus.DefaultRegisterer

func Create(host string, env string, nameSpace string) error {
	defaultLabels = make(prometheus.Labels)
	defaultLabels["env"] = env
	defaultLabels["instance"] = host
	namespace = nameSpace
	MetricSystemEnabled = true

	var err error
	hasError := func(e error) {
		if err == nil && e != nil {
			err = e
		}
	}

	hasError(createCounter(SystemIngestion, MetricIngestionInserted))
	hasError(createCounter(SystemIngestion, MetricIngestionDuplicates))
	hasError(createCounter(SystemIngestion, MetricIngestionCorrections))
	hasError(createCounterVec(SystemIngestion, MetricIngestionFailures, []string{"kind"}))
	hasError(createHistogramVec(SystemIngestion, MetricIngestionDuration, []string{"outcome"}))

	hasError(createCounterVec(SystemImports, MetricImportEvents, []string{"outcome"}))
	hasError(createHistogram(SystemImports, MetricEventDuration))
	hasError(createGaugeVec(SystemImports, MetricQueueDepth, []string{"queue", "state"}))

	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	return nil
}

func ListenAndServer(port string, url string) {
	hh := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	s := xhttp.CreateServer()
	s.GET(url, hh)
	logger.Info("[metrics-server] listening...", "url", url)
	if err := s.ListenAndServe(port); err != nil {
		logger.Panic("[metrics-server] http listen error", "error", err)
	}
}

func createCounter(subsystem, name string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	MetricCollectionCounters[subsystem+name] = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        strings.ReplaceAll(subsystem+" "+name, "_", " "),
		ConstLabels: defaultLabels,
	})
	return registerer.Register(MetricCollectionCounters[subsystem+name])
}

func createCounterVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	MetricCollectionCounterVec[subsystem+name] = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        strings.ReplaceAll(subsystem+" "+name, "_", " "),
		ConstLabels: defaultLabels,
	}, labels)
	return registerer.Register(MetricCollectionCounterVec[subsystem+name])
}

func createHistogram(subsystem, name string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	MetricCollectionHistogram[subsystem+name] = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        strings.ReplaceAll(subsystem+" "+name, "_", " "),
		ConstLabels: defaultLabels,
		Buckets:     prometheus.DefBuckets,
	})
	return registerer.Register(MetricCollectionHistogram[subsystem+name])
}

func createHistogramVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	MetricCollectionHistogramVec[subsystem+name] = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        strings.ReplaceAll(subsystem+" "+name, "_", " "),
		ConstLabels: defaultLabels,
	}, labels)
	return registerer.Register(MetricCollectionHistogramVec[subsystem+name])
}

func createGaugeVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()

	MetricCollectionGaugeVec[subsystem+name] = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        strings.ReplaceAll(subsystem+" "+name, "_", " "),
		ConstLabels: defaultLabels,
	}, labels)
	return registerer.Register(MetricCollectionGaugeVec[subsystem+name])
}

func IncCounter(subsystem, name string) {
	AddCounter(subsystem, name, 1)
}

func AddCounter(subsystem, name string, number float64) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionCounters[subsystem+name]; ok {
		v.Add(number)
		return
	}
	logger.Warn("[metrics-server] counter not found", "subsystem", subsystem, "name", name)
}

func SetGaugeVec(subsystem, name string, num float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionGaugeVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Set(num)
		return
	}
	logger.Warn("[metrics-server] gauge not found", "subsystem", subsystem, "name", name)
}

func AddCounterVec(subsystem, name string, num float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionCounterVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Add(num)
		return
	}
	logger.Warn("[metrics-server] counter vec not found", "subsystem", subsystem, "name", name)
}

func IncCounterVec(subsystem, name string, labelValues ...string) {
	AddCounterVec(subsystem, name, 1, labelValues...)
}

func AddHistogram(subsystem, name string, number float64) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionHistogram[subsystem+name]; ok {
		v.Observe(number)
		return
	}
	logger.Warn("[metrics-server] histogram not found", "subsystem", subsystem, "name", name)
}

func AddHistogramVec(subsystem, name string, number float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionHistogramVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Observe(number)
		return
	}
	logger.Warn("[metrics-server] histogram vec not found", "subsystem", subsystem, "name", name)
}

func AddIngestionResult(inserted, duplicates int, corrected bool, duration float64) {
	AddCounter(SystemIngestion, MetricIngestionInserted, float64(inserted))
	AddCounter(SystemIngestion, MetricIngestionDuplicates, float64(duplicates))
	if corrected {
		IncCounter(SystemIngestion, MetricIngestionCorrections)
	}
	AddHistogramVec(SystemIngestion, MetricIngestionDuration, duration, "ok")
}

func AddIngestionFailure(kind string, duration float64) {
	IncCounterVec(SystemIngestion, MetricIngestionFailures, kind)
	AddHistogramVec(SystemIngestion, MetricIngestionDuration, duration, "error")
}

func IncImportEvent(outcome string) {
	IncCounterVec(SystemImports, MetricImportEvents, outcome)
}

func ObserveEventDuration(seconds float64) {
	AddHistogram(SystemImports, MetricEventDuration, seconds)
}

// SetQueueDepth records the stream length, pending entries and dead letters of a queue.
func SetQueueDepth(queue string, total, pending, deadLetters int64) {
	SetGaugeVec(SystemImports, MetricQueueDepth, float64(total), queue, "total")
	SetGaugeVec(SystemImports, MetricQueueDepth, float64(pending), queue, "pending")
	SetGaugeVec(SystemImports, MetricQueueDepth, float64(deadLetters), queue, "dead_letter")
}
