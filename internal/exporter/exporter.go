package exporter

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/vyrodovalexey/avadiag/internal/encoding"
	"github.com/vyrodovalexey/avadiag/internal/observability"
	"github.com/vyrodovalexey/avadiag/internal/plugin"
	"github.com/vyrodovalexey/avadiag/internal/service"
	"github.com/vyrodovalexey/avadiag/internal/util"
)

// Route patterns served by the exporter.
const (
	PatternStats          = "/stats.json"
	PatternMetrics        = "/admin/metrics.json"
	PatternPerHostMetrics = "/admin/per_host_metrics.json"
)

// HostLabel is the label that assigns a sample to a host.
const HostLabel = "host"

// Query parameters understood by the handlers.
const (
	ParamPretty = "pretty"
	ParamFilter = "filter"
)

// Exporter builds handlers over a gatherer.
type Exporter struct {
	gatherer prometheus.Gatherer
	logger   observability.Logger
}

// New creates an Exporter.
func New(gatherer prometheus.Gatherer, logger observability.Logger) *Exporter {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Exporter{gatherer: gatherer, logger: logger}
}

// Register adds the three handlers to catalog.
func (e *Exporter) Register(catalog *plugin.Catalog) error {
	for _, r := range []struct {
		pattern string
		handler service.Handler
	}{
		{PatternStats, e.Stats()},
		{PatternMetrics, e.Metrics()},
		{PatternPerHostMetrics, e.PerHostMetrics()},
	} {
		if err := catalog.Add(r.pattern, r.handler); err != nil {
			return err
		}
	}
	return nil
}

// Stats serves a flat name to value object.
func (e *Exporter) Stats() service.Handler {
	return e.handler("stats", func(families []*dto.MetricFamily, filter *regexp.Regexp) any {
		out := make(map[string]float64)
		for _, f := range families {
			for _, s := range flatten(f) {
				if !finite(s.value) {
					continue
				}
				if filter == nil || filter.MatchString(s.key) {
					out[s.key] = s.value
				}
			}
		}
		return out
	})
}

// Metrics serves every family with its samples.
func (e *Exporter) Metrics() service.Handler {
	return e.handler("metrics", func(families []*dto.MetricFamily, filter *regexp.Regexp) any {
		out := make([]familyJSON, 0, len(families))
		for _, f := range families {
			if filter != nil && !filter.MatchString(f.GetName()) {
				continue
			}
			out = append(out, toFamilyJSON(f))
		}
		return out
	})
}

// PerHostMetrics serves samples that carry a host label, grouped by host.
func (e *Exporter) PerHostMetrics() service.Handler {
	return e.handler("per_host_metrics", func(families []*dto.MetricFamily, _ *regexp.Regexp) any {
		out := make(map[string]map[string]float64)
		for _, f := range families {
			for _, m := range f.GetMetric() {
				host, rest := splitLabel(m.GetLabel(), HostLabel)
				if host == "" {
					continue
				}
				byHost, ok := out[host]
				if !ok {
					byHost = make(map[string]float64)
					out[host] = byHost
				}
				for _, s := range samples(f.GetName(), f.GetType(), rest, m) {
					if finite(s.value) {
						byHost[s.key] = s.value
					}
				}
			}
		}
		return out
	})
}

type renderFunc func(families []*dto.MetricFamily, filter *regexp.Regexp) any

func (e *Exporter) handler(name string, render renderFunc) service.Handler {
	return service.HandlerFunc(func(_ context.Context, req *service.Request) (*service.Response, error) {
		var filter *regexp.Regexp
		if expr := req.Params.Get(ParamFilter); expr != "" {
			re, err := util.CompileRegex(expr)
			if err != nil {
				return service.Error(http.StatusBadRequest, req.Proto,
					fmt.Sprintf("invalid filter: %v", err)), nil
			}
			filter = re
		}

		families, err := e.gatherer.Gather()
		if err != nil {
			// Gather returns partial results alongside the error.
			e.logger.Warn("gather reported errors",
				observability.String("exporter", name),
				observability.Error(err),
			)
		}

		pretty := req.Params.Get(ParamPretty) == "true"
		doc := render(families, filter)

		if !encoding.ExpectsJSON(req) && encoding.ExpectsHTML(req) {
			resp, err := service.JSON(http.StatusOK, req.Proto, doc, true)
			if err != nil {
				return nil, err
			}
			return service.HTML(http.StatusOK, req.Proto, name, resp.BodyString()), nil
		}
		return service.JSON(http.StatusOK, req.Proto, doc, pretty)
	})
}

type sample struct {
	key   string
	value float64
}

func flatten(f *dto.MetricFamily) []sample {
	var out []sample
	for _, m := range f.GetMetric() {
		out = append(out, samples(f.GetName(), f.GetType(), m.GetLabel(), m)...)
	}
	return out
}

// samples expands a metric into named values. Histograms and summaries
// contribute their _count and _sum.
func samples(name string, typ dto.MetricType, labels []*dto.LabelPair, m *dto.Metric) []sample {
	suffix := labelSuffix(labels)
	switch typ {
	case dto.MetricType_COUNTER:
		return []sample{{name + suffix, m.GetCounter().GetValue()}}
	case dto.MetricType_GAUGE:
		return []sample{{name + suffix, m.GetGauge().GetValue()}}
	case dto.MetricType_HISTOGRAM, dto.MetricType_GAUGE_HISTOGRAM:
		h := m.GetHistogram()
		return []sample{
			{name + "_count" + suffix, float64(h.GetSampleCount())},
			{name + "_sum" + suffix, h.GetSampleSum()},
		}
	case dto.MetricType_SUMMARY:
		s := m.GetSummary()
		return []sample{
			{name + "_count" + suffix, float64(s.GetSampleCount())},
			{name + "_sum" + suffix, s.GetSampleSum()},
		}
	default:
		return []sample{{name + suffix, m.GetUntyped().GetValue()}}
	}
}

// labelSuffix renders labels as {a="x",b="y"} sorted by name.
func labelSuffix(labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(labels))
	for _, l := range labels {
		pairs = append(pairs, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
	}
	sort.Strings(pairs)
	return "{" + strings.Join(pairs, ",") + "}"
}

// splitLabel returns the value of the named label and the remaining labels.
func splitLabel(labels []*dto.LabelPair, name string) (string, []*dto.LabelPair) {
	var (
		value string
		rest  = make([]*dto.LabelPair, 0, len(labels))
	)
	for _, l := range labels {
		if l.GetName() == name {
			value = l.GetValue()
			continue
		}
		rest = append(rest, l)
	}
	return value, rest
}

// finite reports whether v can be encoded as JSON.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finitePtr(v float64) *float64 {
	if !finite(v) {
		return nil
	}
	return &v
}

type familyJSON struct {
	Name    string       `json:"name"`
	Help    string       `json:"help,omitempty"`
	Type    string       `json:"type"`
	Metrics []metricJSON `json:"metrics"`
}

type metricJSON struct {
	Labels map[string]string `json:"labels,omitempty"`
	Value  *float64          `json:"value,omitempty"`
	Count  *uint64           `json:"count,omitempty"`
	Sum    *float64          `json:"sum,omitempty"`
}

func toFamilyJSON(f *dto.MetricFamily) familyJSON {
	out := familyJSON{
		Name:    f.GetName(),
		Help:    f.GetHelp(),
		Type:    strings.ToLower(f.GetType().String()),
		Metrics: make([]metricJSON, 0, len(f.GetMetric())),
	}
	for _, m := range f.GetMetric() {
		mj := metricJSON{}
		if len(m.GetLabel()) > 0 {
			mj.Labels = make(map[string]string, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				mj.Labels[l.GetName()] = l.GetValue()
			}
		}
		switch f.GetType() {
		case dto.MetricType_COUNTER:
			mj.Value = finitePtr(m.GetCounter().GetValue())
		case dto.MetricType_GAUGE:
			mj.Value = finitePtr(m.GetGauge().GetValue())
		case dto.MetricType_HISTOGRAM, dto.MetricType_GAUGE_HISTOGRAM:
			c := m.GetHistogram().GetSampleCount()
			mj.Count, mj.Sum = &c, finitePtr(m.GetHistogram().GetSampleSum())
		case dto.MetricType_SUMMARY:
			c := m.GetSummary().GetSampleCount()
			mj.Count, mj.Sum = &c, finitePtr(m.GetSummary().GetSampleSum())
		default:
			mj.Value = finitePtr(m.GetUntyped().GetValue())
		}
		out.Metrics = append(out.Metrics, mj)
	}
	return out
}
