// Package metrics exports controller readings as Prometheus gauges.
package metrics

import (
	"net/http"

	"github.com/muurk/cyberq/internal/cyberq"
	"github.com/muurk/cyberq/internal/poller"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry so tests and multiple instances never
// collide on the global one.
type Collector struct {
	registry *prometheus.Registry

	probeTemperature *prometheus.GaugeVec
	probeSetpoint    *prometheus.GaugeVec
	probeStatus      *prometheus.GaugeVec
	outputPercent    prometheus.Gauge
	fanShorted       prometheus.Gauge
	connFailure      prometheus.Gauge
	lastRefresh      prometheus.Gauge
	deviceInfo       *prometheus.GaugeVec
}

func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		probeTemperature: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cyberq_probe_temperature_fahrenheit",
				Help: "Current probe temperature in Fahrenheit",
			},
			[]string{"probe", "name"},
		),
		probeSetpoint: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cyberq_probe_setpoint_fahrenheit",
				Help: "Probe target temperature in Fahrenheit",
			},
			[]string{"probe", "name"},
		),
		probeStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cyberq_probe_status",
				Help: "Probe status index (0=ok, 1=high, 2=low, 3=done, 4=error, 5=hold, 6=alarm, 7=shutdown)",
			},
			[]string{"probe", "name"},
		),
		outputPercent: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cyberq_output_percent",
				Help: "Blower output in percent",
			},
		),
		fanShorted: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cyberq_fan_shorted",
				Help: "1 if the controller reports a shorted fan, 0 otherwise",
			},
		),
		connFailure: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cyberq_connection_failure",
				Help: "1 if the last refresh failed, 0 if successful",
			},
		),
		lastRefresh: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cyberq_last_refresh_timestamp_seconds",
				Help: "Unix timestamp of the last successful refresh",
			},
		),
		deviceInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cyberq_device_info",
				Help: "Controller identity; always 1",
			},
			[]string{"serial", "model", "firmware"},
		),
	}

	c.registry.MustRegister(
		c.probeTemperature,
		c.probeSetpoint,
		c.probeStatus,
		c.outputPercent,
		c.fanShorted,
		c.connFailure,
		c.lastRefresh,
		c.deviceInfo,
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Update maps a poller state onto the gauges. Failed refreshes only flip
// the connection gauge; readings keep their last values.
func (c *Collector) Update(s poller.State) {
	if !s.Available {
		c.connFailure.Set(1)
		return
	}
	c.connFailure.Set(0)
	c.lastRefresh.Set(float64(s.LastSuccess.Unix()))

	c.deviceInfo.Reset()
	if s.Identity.SerialNumber != "" {
		c.deviceInfo.WithLabelValues(s.Identity.SerialNumber, s.Identity.Model, s.Identity.SoftwareVersion).Set(1)
	}

	if s.Snapshot == nil {
		return
	}

	// Probe names are labels; a rename must not leave the old series behind.
	c.probeTemperature.Reset()
	c.probeSetpoint.Reset()
	c.probeStatus.Reset()
	for _, r := range cyberq.ReadProbes(s.Snapshot) {
		name := r.DisplayName()
		if r.HasTemp {
			c.probeTemperature.WithLabelValues(r.Probe.Key, name).Set(r.Temperature)
		}
		if r.HasSetpoint {
			c.probeSetpoint.WithLabelValues(r.Probe.Key, name).Set(r.Setpoint)
		}
		if r.HasStatus {
			c.probeStatus.WithLabelValues(r.Probe.Key, name).Set(float64(r.StatusIndex))
		}
	}

	if v, err := s.Snapshot.Get("OUTPUT_PERCENT"); err == nil {
		if f, ok := v.Float(); ok {
			c.outputPercent.Set(f)
		}
	}
	if v, err := s.Snapshot.Get("FAN_SHORTED"); err == nil {
		if b, ok := v.Bool(); ok {
			c.fanShorted.Set(boolToFloat(b))
		}
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
