// Package metrics exposes Prometheus counters for signups, signins and image uploads.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	ResultSuccess         = "success"
	ResultDuplicate       = "duplicate"
	ResultUnsupportedFile = "unsupported_file"
	ResultInvalid         = "invalid_credentials"
	ResultFailure         = "failure"
)

// Collector holds the application counters.
type Collector struct {
	signups      *prometheus.CounterVec
	signins      *prometheus.CounterVec
	imageUploads *prometheus.CounterVec
	backend      string
}

// NewCollector registers the counters on reg. backend labels image uploads
// with the active image store ("local" or "s3").
func NewCollector(reg prometheus.Registerer, backend string) *Collector {
	c := &Collector{
		signups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "profilesite_signups_total",
			Help: "Signup attempts by result.",
		}, []string{"result"}),
		signins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "profilesite_signins_total",
			Help: "Signin attempts by result.",
		}, []string{"result"}),
		imageUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "profilesite_image_uploads_total",
			Help: "Profile image uploads by backend and result.",
		}, []string{"backend", "result"}),
		backend: backend,
	}

	reg.MustRegister(c.signups, c.signins, c.imageUploads)

	return c
}

// RecordSignup counts one signup attempt.
func (c *Collector) RecordSignup(result string) {
	c.signups.WithLabelValues(result).Inc()
}

// RecordSignin counts one signin attempt.
func (c *Collector) RecordSignin(result string) {
	c.signins.WithLabelValues(result).Inc()
}

// RecordImageUpload counts one image store call.
func (c *Collector) RecordImageUpload(result string) {
	c.imageUploads.WithLabelValues(c.backend, result).Inc()
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
