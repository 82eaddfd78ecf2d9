package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/athena/algorithm"
	"github.com/YuminosukeSato/athena/pkg/errors"
	"github.com/YuminosukeSato/athena/pkg/log"
)

// Summary is the serialisable view of a run. Non-finite numbers become
// null.
type Summary struct {
	RunID string        `json:"run_id" yaml:"run_id"`
	Zones []ZoneSummary `json:"zones" yaml:"zones"`
	Bias  []BiasRow     `json:"bias_report,omitempty" yaml:"bias_report,omitempty"`
}

// ZoneSummary summarises one zone.
type ZoneSummary struct {
	Zone       string             `json:"zone" yaml:"zone"`
	Final      string             `json:"final_algorithm" yaml:"final_algorithm"`
	Stage      string             `json:"stage,omitempty" yaml:"stage,omitempty"`
	Score      *float64           `json:"score" yaml:"score"`
	Prediction *float64           `json:"prediction" yaml:"prediction"`
	Threshold  *float64           `json:"threshold" yaml:"threshold"`
	Benchmark  *float64           `json:"benchmark" yaml:"benchmark"`
	BiasAlert  bool               `json:"bias_alert" yaml:"bias_alert"`
	Error      string             `json:"error,omitempty" yaml:"error,omitempty"`
	Algorithms []AlgorithmSummary `json:"algorithms" yaml:"algorithms"`
}

// AlgorithmSummary summarises one candidate attempt.
type AlgorithmSummary struct {
	Algorithm         string     `json:"algorithm" yaml:"algorithm"`
	Status            string     `json:"status" yaml:"status"`
	CVRMSE            []*float64 `json:"cv_rmse" yaml:"cv_rmse"`
	MeanRMSE          *float64   `json:"mean_rmse" yaml:"mean_rmse"`
	StdRMSE           *float64   `json:"std_rmse" yaml:"std_rmse"`
	ExceededResources bool       `json:"exceeded_resources" yaml:"exceeded_resources"`
	R2                *float64   `json:"r2" yaml:"r2"`
	RMSE              *float64   `json:"rmse" yaml:"rmse"`
	TrainingSeconds   float64    `json:"training_seconds" yaml:"training_seconds"`
	Prediction        *float64   `json:"prediction" yaml:"prediction"`
	Rows              int        `json:"rows" yaml:"rows"`
	Shrinks           int        `json:"shrinks,omitempty" yaml:"shrinks,omitempty"`
	ModelKey          string     `json:"model_key,omitempty" yaml:"model_key,omitempty"`
	Error             string     `json:"error,omitempty" yaml:"error,omitempty"`
	Alerts            []string   `json:"alerts,omitempty" yaml:"alerts,omitempty"`
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Summarize builds the serialisable view of the aggregator.
func (a *Aggregator) Summarize() Summary {
	s := Summary{RunID: a.RunID}
	for _, z := range a.Zones() {
		a.mu.RLock()
		zs := ZoneSummary{
			Zone:      z.Name,
			Final:     algorithm.None.String(),
			Threshold: finite(z.Threshold),
			Benchmark: finite(z.Benchmark),
			BiasAlert: z.BiasAlert,
		}
		if z.Final != nil {
			zs.Final = z.Final.Algorithm.String()
			zs.Stage = string(z.Final.Stage)
			zs.Score = finite(z.Final.Score)
			zs.Prediction = finite(z.Final.Prediction)
		}
		if z.Err != nil {
			zs.Error = z.Err.Error()
		}
		for _, algo := range z.Order {
			r := z.Results[algo]
			as := AlgorithmSummary{
				Algorithm:         algo.String(),
				Status:            string(r.Status),
				MeanRMSE:          finite(r.CV.MeanRMSE),
				StdRMSE:           finite(r.CV.StdRMSE),
				ExceededResources: r.CV.ExceededResources,
				R2:                finite(r.R2),
				RMSE:              finite(r.RMSE),
				TrainingSeconds:   r.TrainingTime.Seconds(),
				Prediction:        finite(r.Prediction),
				Rows:              r.Rows,
				Shrinks:           r.Shrinks,
				ModelKey:          r.ModelKey,
				Error:             r.Error,
			}
			for _, v := range r.CV.CycleRMSE {
				as.CVRMSE = append(as.CVRMSE, finite(v))
			}
			for _, al := range z.Alerts[algo] {
				as.Alerts = append(as.Alerts, fmt.Sprintf("%s: %s", al.Level, al.Message))
			}
			zs.Algorithms = append(zs.Algorithms, as)
		}
		a.mu.RUnlock()
		s.Zones = append(s.Zones, zs)
	}
	if rows, ok := a.BiasReport(); ok {
		s.Bias = rows
	}
	return s
}

// Format selects an export encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Export writes the run summary in format f.
func (a *Aggregator) Export(w io.Writer, f Format) error {
	s := a.Summarize()
	switch Format(strings.ToLower(string(f))) {
	case FormatYAML, "yml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return errors.Wrap(err, "encode yaml summary")
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(s), "encode json summary")
	default:
		return errors.NewValidationError("format", "must be yaml or json", f)
	}
}

// BiasText renders the bias-monitoring report as plain text for alert
// delivery.
func BiasText(rows []BiasRow) string {
	var b strings.Builder
	b.WriteString("Bias monitoring report\n")
	byZone := map[string][]BiasRow{}
	var zones []string
	for _, r := range rows {
		if _, ok := byZone[r.Zone]; !ok {
			zones = append(zones, r.Zone)
		}
		byZone[r.Zone] = append(byZone[r.Zone], r)
	}
	sort.Strings(zones)
	for _, z := range zones {
		fmt.Fprintf(&b, "Zone %s:\n", z)
		for _, r := range byZone[z] {
			fmt.Fprintf(&b, "  %s: R²=%.4f prediction=%.4f\n", r.Algorithm, r.R2, r.Prediction)
		}
	}
	return b.String()
}

// LogAlerts writes the alerts of every (zone, algorithm) between header and
// footer lines.
func (a *Aggregator) LogAlerts(logger log.Logger) {
	for _, z := range a.Zones() {
		a.mu.RLock()
		algos := z.Order
		if _, ok := z.Alerts[algorithm.None]; ok {
			algos = append([]algorithm.Algorithm{algorithm.None}, algos...)
		}
		for _, algo := range algos {
			alerts := z.Alerts[algo]
			if len(alerts) == 0 {
				continue
			}
			logger.Info(fmt.Sprintf("----- Alerts for %s / %s -----", z.Name, algo))
			for _, al := range alerts {
				logger.Info(al.Message, log.ZoneKey, z.Name, log.AlgorithmKey, algo.String(), "level", string(al.Level))
			}
			logger.Info("----- End of alerts -----")
		}
		a.mu.RUnlock()
	}
}
