//go:build linux && (amd64 || arm64)

// Package metrics exports benchmark results in the Prometheus text format,
// for the node_exporter textfile collector or any other scraper.
package metrics

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/weiihann/vmabench/bench"
)

const namespace = "vmabench"

var labels = []string{"operation", "vma", "timer", "unit"}

type collector struct {
	mean     *prometheus.GaugeVec
	stddev   *prometheus.GaugeVec
	stderr   *prometheus.GaugeVec
	trials   *prometheus.GaugeVec
	duration *prometheus.GaugeVec
	failures *prometheus.GaugeVec
}

func gauge(name, help string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, labels)
}

func newCollector() *collector {
	return &collector{
		mean:     gauge("sample_mean", "Mean per-batch sample."),
		stddev:   gauge("sample_stddev", "Population standard deviation of the samples."),
		stderr:   gauge("sample_stderr", "Standard error of the sample mean."),
		trials:   gauge("trials", "Number of samples collected."),
		duration: gauge("duration_seconds", "Wall-clock duration of the configuration."),
		failures: gauge("failures", "Failed calls inside timed windows."),
	}
}

func (c *collector) register(reg *prometheus.Registry) error {
	for _, g := range []*prometheus.GaugeVec{
		c.mean, c.stddev, c.stderr, c.trials, c.duration, c.failures,
	} {
		if err := reg.Register(g); err != nil {
			return err
		}
	}

	return nil
}

func (c *collector) observe(r *bench.Result) {
	unit := r.Unit
	if unit == "" {
		unit = "ticks"
	}

	lv := []string{r.Operation.String(), strconv.Itoa(r.VMACount), r.Timer, unit}

	c.mean.WithLabelValues(lv...).Set(r.Summary.Mean)
	c.stddev.WithLabelValues(lv...).Set(r.Summary.StdDev)
	c.stderr.WithLabelValues(lv...).Set(r.Summary.StdErr)
	c.trials.WithLabelValues(lv...).Set(float64(r.Summary.N))
	c.duration.WithLabelValues(lv...).Set(r.Duration.Seconds())
	c.failures.WithLabelValues(lv...).Set(float64(r.Failures))
}

// Registry returns a registry holding one series per result and metric.
func Registry(results []*bench.Result) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	c := newCollector()

	if err := c.register(reg); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	for _, r := range results {
		c.observe(r)
	}

	return reg, nil
}

// Export writes results to path atomically.
func Export(path string, results []*bench.Result) error {
	reg, err := Registry(results)
	if err != nil {
		return err
	}

	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}

	return nil
}
