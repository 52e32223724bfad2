// Package metrics records pipeline counters for a batch run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
)

const metricPrefix = "tripgeo_"

// Station states reported by StationsResolved.
const (
	StationResolved   = "resolved"
	StationUnresolved = "unresolved"
	StationAmbiguous  = "ambiguous"
)

// Recorder owns a private registry so runs and tests never share state.
type Recorder struct {
	reg *prometheus.Registry

	rowsRead       prometheus.Counter
	rowsRejected   *prometheus.CounterVec
	tripsFiltered  *prometheus.CounterVec
	stations       *prometheus.GaugeVec
	tripsEnriched  prometheus.Counter
	tripsDropped   *prometheus.CounterVec
	catalogEntries prometheus.Gauge
	stageDuration  *prometheus.HistogramVec
}

// New creates a Recorder with every collector registered.
func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		rowsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "rows_read_total",
			Help: "Raw trip rows read from the trip source",
		}),
		rowsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "rows_rejected_total",
			Help: "Raw trip rows rejected before the pipeline by reason",
		}, []string{"reason"}),
		tripsFiltered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "trips_filtered_total",
			Help: "Trips seen by the trip filter by outcome",
		}, []string{"outcome"}),
		stations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: metricPrefix + "stations",
			Help: "Stations by resolution state",
		}, []string{"state"}),
		tripsEnriched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "trips_enriched_total",
			Help: "Trips with both stations resolved",
		}),
		tripsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "trips_unresolved_total",
			Help: "Trips dropped by the enrichment join by unresolved end",
		}, []string{"end"}),
		catalogEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "catalog_entries",
			Help: "Neighbourhood polygons in the catalog after exclusion",
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metricPrefix + "stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
	}

	r.reg.MustRegister(
		r.rowsRead,
		r.rowsRejected,
		r.tripsFiltered,
		r.stations,
		r.tripsEnriched,
		r.tripsDropped,
		r.catalogEntries,
		r.stageDuration,
	)
	return r
}

// Registry exposes the underlying registry, e.g. for an HTTP handler.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.reg
}

// RowsRead adds n raw rows read.
func (r *Recorder) RowsRead(n int) {
	r.rowsRead.Add(float64(n))
}

// RowsRejected adds n rows rejected for reason.
func (r *Recorder) RowsRejected(reason string, n int) {
	r.rowsRejected.WithLabelValues(reason).Add(float64(n))
}

// TripsFiltered records the filter outcome.
func (r *Recorder) TripsFiltered(kept, dropped int) {
	r.tripsFiltered.WithLabelValues("kept").Add(float64(kept))
	r.tripsFiltered.WithLabelValues("dropped").Add(float64(dropped))
}

// CatalogEntries sets the catalog size.
func (r *Recorder) CatalogEntries(n int) {
	r.catalogEntries.Set(float64(n))
}

// StationsResolved sets the station gauges.
func (r *Recorder) StationsResolved(resolved, unresolved, ambiguous int) {
	r.stations.WithLabelValues(StationResolved).Set(float64(resolved))
	r.stations.WithLabelValues(StationUnresolved).Set(float64(unresolved))
	r.stations.WithLabelValues(StationAmbiguous).Set(float64(ambiguous))
}

// TripsEnriched records the enrichment join outcome.
func (r *Recorder) TripsEnriched(enriched, unresolvedStart, unresolvedEnd, unresolvedBoth int) {
	r.tripsEnriched.Add(float64(enriched))
	r.tripsDropped.WithLabelValues("start").Add(float64(unresolvedStart))
	r.tripsDropped.WithLabelValues("end").Add(float64(unresolvedEnd))
	r.tripsDropped.WithLabelValues("both").Add(float64(unresolvedBoth))
}

// ObserveStage records how long a stage took.
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// WriteTextfile writes the registry in text exposition format, suitable for
// the node_exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	return eris.Wrap(prometheus.WriteToTextfile(path, r.reg), "metrics: write textfile")
}
