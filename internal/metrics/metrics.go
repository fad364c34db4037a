package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	Ticks        prometheus.Counter
	TickDuration prometheus.Histogram

	RoutesRunning   prometheus.Gauge
	RoutesConfirmed prometheus.Gauge
	StopsServed     prometheus.Gauge
	LiveVehicles    prometheus.Gauge
	SuppressedLive  prometheus.Gauge

	MalformedTokens prometheus.Counter
	FeedBindings    prometheus.Counter

	BoardsPublished  prometheus.Counter
	BoardPublishErrs prometheus.Counter
	PublishDuration  prometheus.Histogram
	VehiclesReceived prometheus.Counter
	VehicleDecodeErr prometheus.Counter
	NATSConnected    prometheus.Gauge

	CatalogInfo  *prometheus.GaugeVec // version, source labels
	TickInterval prometheus.Gauge     // seconds
}

func NewCollector(tickInterval time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shuttle_ticks_total",
			Help: "Total evaluation ticks.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shuttle_tick_duration_seconds",
			Help:    "Duration of one evaluation tick.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15),
		}),
		RoutesRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shuttle_routes_running",
			Help: "Routes inside their service window at the last tick.",
		}),
		RoutesConfirmed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shuttle_routes_confirmed",
			Help: "Running routes corroborated by live vehicles at the last tick.",
		}),
		StopsServed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shuttle_stops_served_today",
			Help: "Stops with any service today at the last tick.",
		}),
		LiveVehicles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shuttle_live_vehicles",
			Help: "Vehicles in the current live snapshot.",
		}),
		SuppressedLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shuttle_live_vehicles_suppressed",
			Help: "Live vehicles hidden because their route is outside its window.",
		}),
		MalformedTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shuttle_malformed_tokens_total",
			Help: "Timetable tokens that could not be parsed.",
		}),
		FeedBindings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shuttle_feed_bindings_total",
			Help: "Feed route identifiers bound to catalog routes.",
		}),
		BoardsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shuttle_boards_published_total",
			Help: "Boards published to NATS.",
		}),
		BoardPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shuttle_board_publish_errors_total",
			Help: "Board publish errors.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shuttle_publish_duration_seconds",
			Help:    "Duration to marshal and publish a board.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		VehiclesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shuttle_vehicle_positions_received_total",
			Help: "Vehicle position messages received.",
		}),
		VehicleDecodeErr: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shuttle_vehicle_position_decode_errors_total",
			Help: "Vehicle position messages that failed to decode.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shuttle_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		CatalogInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "shuttle_catalog_info",
			Help: "Loaded timetable catalog; value is always 1.",
		}, []string{"version", "source"}),
		TickInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shuttle_tick_interval_seconds",
			Help: "Evaluation tick interval in seconds.",
		}),
	}

	reg.MustRegister(
		c.Ticks, c.TickDuration,
		c.RoutesRunning, c.RoutesConfirmed, c.StopsServed, c.LiveVehicles, c.SuppressedLive,
		c.MalformedTokens, c.FeedBindings,
		c.BoardsPublished, c.BoardPublishErrs, c.PublishDuration,
		c.VehiclesReceived, c.VehicleDecodeErr, c.NATSConnected,
		c.CatalogInfo, c.TickInterval,
	)

	c.TickInterval.Set(tickInterval.Seconds())

	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Registry exposes the underlying registry for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// SetCatalog records which catalog version is loaded.
func (c *Collector) SetCatalog(version, source string) {
	c.CatalogInfo.Reset()
	c.CatalogInfo.WithLabelValues(version, source).Set(1)
}

// The methods below adapt the collector to the publisher's metrics interface.

func (c *Collector) BoardPublishedInc()             { c.BoardsPublished.Inc() }
func (c *Collector) BoardPublishErrInc()            { c.BoardPublishErrs.Inc() }
func (c *Collector) PublishObserve(d time.Duration) { c.PublishDuration.Observe(d.Seconds()) }
func (c *Collector) VehicleReceivedInc()            { c.VehiclesReceived.Inc() }
func (c *Collector) VehicleDecodeErrInc()           { c.VehicleDecodeErr.Inc() }
func (c *Collector) NATSSetConnected(b bool) {
	if b {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}
