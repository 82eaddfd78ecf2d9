package report

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/athena/algorithm"
	"github.com/YuminosukeSato/athena/notify"
	"github.com/YuminosukeSato/athena/pkg/errors"
	"github.com/YuminosukeSato/athena/pkg/log"
	"github.com/YuminosukeSato/athena/validation"
)

func trained(zone string, a algorithm.Algorithm, r2, pred float64) TrainingResult {
	return TrainingResult{
		Zone:       zone,
		Algorithm:  a,
		Status:     StatusTrained,
		Fitted:     true,
		R2:         r2,
		RMSE:       1 - r2,
		Prediction: pred,
		CV:         validation.Result{CycleRMSE: []float64{0.2, math.NaN()}, MeanRMSE: 0.2, StdRMSE: 0},
	}
}

func TestRecordRejectsDuplicates(t *testing.T) {
	a := NewAggregator("run")
	require.NoError(t, a.Record(trained("z", algorithm.Ridge, 0.9, 1)))
	err := a.Record(trained("z", algorithm.Ridge, 0.95, 2))
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))

	r, ok := a.Result("z", algorithm.Ridge)
	require.True(t, ok)
	assert.Equal(t, 0.9, r.R2)

	// the same algorithm in another zone is a different key
	assert.NoError(t, a.Record(trained("y", algorithm.Ridge, 0.5, 1)))
}

func TestBestSoFar(t *testing.T) {
	a := NewAggregator("run")
	require.NoError(t, a.Record(trained("z", algorithm.Ridge, 0.7, 1)))
	require.NoError(t, a.Record(trained("z", algorithm.XGBoost, 0.9, 2)))
	require.NoError(t, a.Record(Failed("z", algorithm.KNN, errors.New("boom"))))

	z, ok := a.Zone("z")
	require.True(t, ok)
	algo, r2, pred, ok := z.Best()
	require.True(t, ok)
	assert.Equal(t, algorithm.XGBoost, algo)
	assert.Equal(t, 0.9, r2)
	assert.Equal(t, 2.0, pred)
}

func TestSupersedeReplacesUnusableResult(t *testing.T) {
	a := NewAggregator("run")
	skipped := Failed("z", algorithm.XGBoost, errors.New("exhausted"))
	skipped.Status = StatusSkipped
	skipped.Alerts = []notify.Alert{{Level: notify.Warning, Message: "skipped"}}
	require.NoError(t, a.Record(skipped))
	a.MarkBias("z")

	refit := trained("z", algorithm.XGBoost, 0.4, 7)
	refit.CV = validation.Result{}
	require.NoError(t, a.Supersede(refit))

	r, ok := a.Result("z", algorithm.XGBoost)
	require.True(t, ok)
	assert.True(t, r.Fitted)
	assert.Equal(t, StatusTrained, r.Status)
	assert.Len(t, r.Alerts, 1)

	z, _ := a.Zone("z")
	assert.Equal(t, []algorithm.Algorithm{algorithm.XGBoost}, z.Order)
	algo, r2, _, ok := z.Best()
	require.True(t, ok)
	assert.Equal(t, algorithm.XGBoost, algo)
	assert.Equal(t, 0.4, r2)

	rows, _ := a.BiasReport()
	assert.Equal(t, []BiasRow{{Zone: "z", Algorithm: "xgboost", R2: 0.4, Prediction: 7}}, rows)

	// a usable result stays
	err := a.Supersede(trained("z", algorithm.XGBoost, 0.9, 1))
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))

	require.NoError(t, a.Supersede(trained("z", algorithm.Ridge, 0.3, 2)))
	assert.Equal(t, []algorithm.Algorithm{algorithm.XGBoost, algorithm.Ridge}, z.Order)
}

func TestAlertsDeduplicatedPerAlgorithm(t *testing.T) {
	a := NewAggregator("run")
	warn := notify.Alert{Level: notify.Warning, Message: "R² below threshold"}
	a.AddAlert("z", algorithm.Ridge, warn)
	a.AddAlert("z", algorithm.Ridge, warn)
	a.AddAlert("z", algorithm.KNN, warn)
	a.AddAlert("z", algorithm.Ridge, notify.Alert{Level: notify.Error, Message: "R² below threshold"})

	z, _ := a.Zone("z")
	assert.Len(t, z.Alerts[algorithm.Ridge], 2)
	assert.Len(t, z.Alerts[algorithm.KNN], 1)
}

func TestBiasReportOnlyForFlaggedZones(t *testing.T) {
	a := NewAggregator("run")
	require.NoError(t, a.Record(trained("north", algorithm.XGBoost, 0.8, 3)))
	require.NoError(t, a.Record(trained("north", algorithm.GradientBoosting, 0.85, 4)))
	require.NoError(t, a.Record(Failed("north", algorithm.KNN, nil)))
	require.NoError(t, a.Record(trained("south", algorithm.Ridge, 0.9, 5)))

	_, ok := a.BiasReport()
	assert.False(t, ok)

	a.MarkBias("north")
	rows, ok := a.BiasReport()
	require.True(t, ok)
	assert.Equal(t, []BiasRow{
		{Zone: "north", Algorithm: "gradient_boosting", R2: 0.85, Prediction: 4},
		{Zone: "north", Algorithm: "xgboost", R2: 0.8, Prediction: 3},
	}, rows)

	text := BiasText(rows)
	assert.Contains(t, text, "Zone north:")
	assert.Contains(t, text, "xgboost: R²=0.8000 prediction=3.0000")
}

func populated(t *testing.T) *Aggregator {
	a := NewAggregator("run-1")
	require.NoError(t, a.Record(trained("z", algorithm.XGBoost, 0.8, 3)))
	require.NoError(t, a.Record(Failed("z", algorithm.KNN, errors.New("fit failed"))))
	a.SetThreshold("z", 0.8, math.NaN())
	a.Resolve("z", Resolution{Algorithm: algorithm.XGBoost, Prediction: 3, Score: 0.8, Stage: StageCV})
	a.MarkBias("z")
	return a
}

func TestExportJSONHandlesNonFinite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, populated(t).Export(&buf, FormatJSON))

	var s Summary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &s))
	require.Len(t, s.Zones, 1)
	z := s.Zones[0]
	assert.Equal(t, "xgboost", z.Final)
	assert.Nil(t, z.Benchmark)
	require.Len(t, z.Algorithms, 2)
	assert.Nil(t, z.Algorithms[0].CVRMSE[1])
	assert.Nil(t, z.Algorithms[1].R2)
	assert.Equal(t, "fit failed", z.Algorithms[1].Error)
	assert.Len(t, s.Bias, 1)
}

func TestExportYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, populated(t).Export(&buf, FormatYAML))

	var s Summary
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &s))
	assert.Equal(t, "run-1", s.RunID)
	assert.Equal(t, "cv", s.Zones[0].Stage)

	assert.Error(t, populated(t).Export(&buf, "xml"))
}

func TestLogAlertsWritesBlocks(t *testing.T) {
	a := NewAggregator("run")
	a.AddAlert("z", algorithm.Ridge, notify.Alert{Level: notify.Warning, Message: "slow"})
	require.NoError(t, a.Record(trained("z", algorithm.Ridge, 0.9, 1)))

	tl, _ := log.NewTestLogger(log.LevelDebug)
	a.LogAlerts(tl)
	assert.True(t, tl.ContainsMessage("----- Alerts for z / ridge -----"))
	assert.True(t, tl.ContainsMessage("slow"))
	assert.True(t, tl.ContainsMessage("----- End of alerts -----"))
}

func TestPlotR2(t *testing.T) {
	rows := []BiasRow{
		{Zone: "north", Algorithm: "xgboost", R2: 0.8},
		{Zone: "north", Algorithm: "gradient_boosting", R2: 0.85},
		{Zone: "south", Algorithm: "xgboost", R2: 0.6},
	}
	path := filepath.Join(t.TempDir(), "r2.png")
	require.NoError(t, PlotR2(rows, path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	assert.Error(t, PlotR2(nil, path))
}

func TestPredictionWriter(t *testing.T) {
	var buf bytes.Buffer
	pw := NewPredictionWriter(&buf)
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, pw.Write(populated(t), at))
	require.NoError(t, pw.Close())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "timestamp,zone,algorithm,prediction,score,stage", lines[0])
	assert.Equal(t, "2025-03-01T12:00:00Z,z,xgboost,3,0.8,cv", lines[1])
}
