package api

import (
	"log/slog"
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/nyameri/octreport/internal/store"
	"github.com/nyameri/octreport/pkg/types"
)

var statuses = []types.Status{types.StatusNormal, types.StatusThinned, types.StatusAbnormal}

// metrics returns GET /metrics in the Prometheus text format.
func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}

	firing := -1
	if h.opts.Alerts != nil {
		firing = h.opts.Alerts.FiringCount()
	}

	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	w.Header().Set("Content-Type", string(format))
	w.WriteHeader(http.StatusOK)

	enc := expfmt.NewEncoder(w, format)
	for _, mf := range BuildMetricFamilies(h.store, firing) {
		if err := enc.Encode(mf); err != nil {
			slog.Error("api: encode metrics", "family", mf.GetName(), "err", err)
			return
		}
	}
}

// BuildMetricFamilies converts the stored analyses into gauge families.
// Families without samples are omitted. firingAlerts < 0 omits the alerts
// gauge.
func BuildMetricFamilies(st *store.Store, firingAlerts int) []*dto.MetricFamily {
	thickness := gaugeFamily("octreport_layer_thickness_um", "Measured layer thickness in micrometres.")
	zScore := gaugeFamily("octreport_layer_z_score", "Deviation of the layer from its normative mean in standard deviations.")
	status := gaugeFamily("octreport_layer_status", "1 for the layer's current status, 0 otherwise.")
	total := gaugeFamily("octreport_total_thickness_um", "Sum of all layer thicknesses in micrometres.")
	quality := gaugeFamily("octreport_quality_score", "Scanner-reported quality score in [0, 1].")
	failed := gaugeFamily("octreport_analysis_failed", "1 when the normative comparison failed.")

	for _, e := range st.List() {
		a := e.Analysis
		src := labelPair("source", a.SourceID)

		total.Metric = append(total.Metric, gauge(a.TotalThicknessUM, src))
		quality.Metric = append(quality.Metric, gauge(a.Quality.Score, src))
		failed.Metric = append(failed.Metric, gauge(boolFloat(a.Failed()), src))

		for _, l := range a.Layers {
			thickness.Metric = append(thickness.Metric, gauge(l.ThicknessUM, src, labelPair("layer", l.Name)))
		}
		for _, c := range a.Comparison {
			layer := labelPair("layer", c.Name)
			zScore.Metric = append(zScore.Metric, gauge(c.ZScore, src, layer))
			for _, s := range statuses {
				status.Metric = append(status.Metric,
					gauge(boolFloat(c.Status == s), src, layer, labelPair("status", string(s))))
			}
		}
	}

	families := []*dto.MetricFamily{thickness, zScore, status, total, quality, failed}
	if firingAlerts >= 0 {
		alerts := gaugeFamily("octreport_alerts_firing", "Number of currently firing alerts.")
		alerts.Metric = append(alerts.Metric, gauge(float64(firingAlerts)))
		families = append(families, alerts)
	}

	out := families[:0]
	for _, mf := range families {
		if len(mf.Metric) > 0 {
			out = append(out, mf)
		}
	}
	return out
}

func gaugeFamily(name, help string) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: dto.MetricType_GAUGE.Enum(),
	}
}

func gauge(v float64, labels ...*dto.LabelPair) *dto.Metric {
	return &dto.Metric{
		Label: labels,
		Gauge: &dto.Gauge{Value: proto.Float64(v)},
	}
}

func labelPair(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: proto.String(name), Value: proto.String(value)}
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
