package prom

import (
	"sync"

	xhttp "github.com/nimasrn/expense-gateway/pkg/http"
	"github.com/nimasrn/expense-gateway/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const (
	SystemGateway   = "gateway"
	SystemReconcile = "reconcile"
	SystemSweep     = "sweep"
	SystemReindex   = "reindex"
)

const (
	MetricRequestsTotal          = "requests_total"
	MetricRequestDurationSeconds = "request_duration_seconds"
	MetricOutcomesTotal          = "outcomes_total"
	MetricRecordsTotal           = "records_total"
	MetricJobsTotal              = "jobs_total"
)

var lock = &sync.Mutex{}
var namespace = "none"

var MetricSystemEnabled = false

var MetricCollectionCounterVec = make(map[string]*prometheus.CounterVec)
var MetricCollectionHistogramVec = make(map[string]*prometheus.HistogramVec)

var defaultLabels prometheus.Labels

// Create registers every metric of the gateway. Until it is called the
// recording helpers are no-ops.
func Create(host string, env string, nameSpace string) error {
	defaultLabels = prometheus.Labels{"env": env, "instance": host}
	namespace = nameSpace

	var err error
	hasError := func(e error) {
		if err == nil && e != nil {
			err = e
		}
	}

	hasError(createCounterVec(SystemGateway, MetricRequestsTotal, []string{"gateway", "outcome"}))
	hasError(createHistogramVec(SystemGateway, MetricRequestDurationSeconds, []string{"gateway"}))
	hasError(createCounterVec(SystemReconcile, MetricOutcomesTotal, []string{"outcome"}))
	hasError(createCounterVec(SystemSweep, MetricRecordsTotal, []string{"outcome"}))
	hasError(createCounterVec(SystemReindex, MetricJobsTotal, []string{"outcome"}))

	if err == nil {
		MetricSystemEnabled = true
	}
	return err
}

func ListenAndServer(addr string, url string) {
	s := xhttp.NewServer(xhttp.ServerOption{Name: "metrics"})
	s.GET(url, fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()))
	logger.Info("[metrics-server] listening...", "addr", addr, "url", url)
	if err := s.ListenAndServe(addr); err != nil {
		logger.Panic("[metrics-server] http listen error", "error", err)
	}
}

func createCounterVec(subsystem, name string, labels []string) error {
	lock.Lock()
	defer lock.Unlock()
	MetricCollectionCounterVec[subsystem+name] = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
	}, labels)
	return prometheus.Register(MetricCollectionCounterVec[subsystem+name])
}

func createHistogramVec(subsystem, name string, labels []string) error {
	lock.Lock()
	defer lock.Unlock()
	MetricCollectionHistogramVec[subsystem+name] = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
		Buckets:     []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30},
	}, labels)
	return prometheus.Register(MetricCollectionHistogramVec[subsystem+name])
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

func ObserveGatewayRequest(gateway, outcome string, seconds float64) {
	IncCounterVec(SystemGateway, MetricRequestsTotal, gateway, outcome)
	AddHistogramVec(SystemGateway, MetricRequestDurationSeconds, seconds, gateway)
}

func IncReconcileOutcome(outcome string) {
	IncCounterVec(SystemReconcile, MetricOutcomesTotal, outcome)
}

func IncSweepRecord(outcome string) {
	IncCounterVec(SystemSweep, MetricRecordsTotal, outcome)
}

func IncReindexJob(outcome string) {
	IncCounterVec(SystemReindex, MetricJobsTotal, outcome)
}
