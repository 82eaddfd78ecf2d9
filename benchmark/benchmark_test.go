package benchmark

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/athena/pkg/errors"
	"github.com/YuminosukeSato/athena/pkg/log"
)

func TestParseSkipsMalformedRows(t *testing.T) {
	tl, _ := log.NewTestLogger(log.LevelDebug)
	prev := log.GetLogger()
	log.SetLogger(tl)
	defer log.SetLogger(prev)

	in := strings.Join([]string{
		"zone,best_r2",
		"north,0.82",
		"south,abc",
		"east",
		",0.5",
		"west, 0.91",
	}, "\n")
	h, err := Parse(context.Background(), strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, History{"north": 0.82, "west": 0.91}, h)
	assert.Equal(t, 3, tl.CountLevel("WARN"))

	v, ok := h.Best("north")
	assert.True(t, ok)
	assert.Equal(t, 0.82, v)
	_, ok = h.Best("nowhere")
	assert.False(t, ok)
}

func TestCSVProviderMissingFile(t *testing.T) {
	_, err := (&CSVProvider{Path: "/nonexistent/bench.csv"}).Load(context.Background())
	assert.True(t, errors.IsConnectivity(err))
}

func TestStaticCopies(t *testing.T) {
	s := Static{"a": 0.5}
	h, err := s.Load(context.Background())
	require.NoError(t, err)
	h["a"] = 1
	assert.Equal(t, 0.5, s["a"])
}

func TestSQLProviderKeepsBestPerZone(t *testing.T) {
	p, err := OpenSQL("sqlite", "file::memory:?cache=shared")
	require.NoError(t, err)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, r := range []Record{
		{Zone: "north", Algorithm: "xgboost", R2: 0.7},
		{Zone: "north", Algorithm: "ridge", R2: 0.85},
		{Zone: "south", Algorithm: "knn", R2: 0.6},
		{Zone: "", Algorithm: "knn", R2: 0.99},
	} {
		r.RecordedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, p.Save(ctx, r))
	}

	h, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, History{"north": 0.85, "south": 0.6}, h)
}

func TestOpenSQLRejectsUnknownDriver(t *testing.T) {
	_, err := OpenSQL("oracle", "")
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
}
