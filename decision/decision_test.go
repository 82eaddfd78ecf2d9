package decision

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/athena/algorithm"
)

func interactive(input string) (*Interactive, *bytes.Buffer) {
	var out bytes.Buffer
	return NewInteractive(strings.NewReader(input), &out), &out
}

func TestDefaults(t *testing.T) {
	ctx := context.Background()
	d := Defaults{}
	assert.False(t, d.Interactive())

	algos, ok, err := d.ChooseAlgorithms(ctx, algorithm.XGBoost, true)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, algos)

	shape, err := d.DataShape(ctx)
	require.NoError(t, err)
	assert.Equal(t, algorithm.ShapeUnsure, shape)

	res, err := d.ResolveExhaustion(ctx, Exhaustion{CanShrink: true})
	require.NoError(t, err)
	assert.Equal(t, Skip, res)

	accept, err := d.ConfirmAccept(ctx, "z", algorithm.Ridge, 0.99, 0.8)
	require.NoError(t, err)
	assert.False(t, accept)
}

func TestChooseAlgorithmsWithBias(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   []algorithm.Algorithm
		wantOK bool
	}{
		{"decline manual selection", "n\n", nil, false},
		{"pick two", "y\n1,3\n", []algorithm.Algorithm{algorithm.LinearRegression, algorithm.XGBoost}, true},
		{"all keyword", "\nall\n", algorithm.Interactive, true},
		{"all by number", "y\n2,5\n", algorithm.Interactive, true},
		{"garbage falls back to suggestion", "y\nx,9\n", []algorithm.Algorithm{algorithm.GradientBoosting}, true},
		{"eof", "", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := interactive(tt.input)
			got, ok, err := p.ChooseAlgorithms(context.Background(), algorithm.GradientBoosting, true)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChooseAlgorithmsWithoutBias(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   []algorithm.Algorithm
		wantOK bool
	}{
		{"accept suggestion", "\n", nil, false},
		{"pick random forest", "n\n2\n", []algorithm.Algorithm{algorithm.RandomForest}, true},
		{"pick all", "no\n5\n", algorithm.Interactive, true},
		{"invalid number", "n\n42\n", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := interactive(tt.input)
			got, ok, err := p.ChooseAlgorithms(context.Background(), algorithm.LinearRegression, false)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDataShape(t *testing.T) {
	tests := map[string]algorithm.Shape{
		"1\n":   algorithm.ShapeNumeric,
		"3\n":   algorithm.ShapeCategorical,
		"0\n":   algorithm.ShapeUnsure,
		"7\n":   algorithm.ShapeUnsure,
		"abc":   algorithm.ShapeUnsure,
		"":      algorithm.ShapeUnsure,
		"4\n":   algorithm.ShapeMixed,
		" 2 \n": algorithm.ShapeBinary,
	}
	for input, want := range tests {
		p, _ := interactive(input)
		got, err := p.DataShape(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want, got, "input %q", input)
	}
}

func TestResolveExhaustion(t *testing.T) {
	e := Exhaustion{
		Zone:         "z",
		Algorithm:    algorithm.XGBoost,
		Alternatives: algorithm.LightweightAlternatives(algorithm.XGBoost),
		CanShrink:    true,
	}
	tests := []struct {
		input     string
		canShrink bool
		want      Resolution
	}{
		{"1\n", true, Shrink},
		{"1\n", false, Skip},
		{"2\n", true, Skip},
		{"3\n", true, Abandon},
		{"9\n", true, Skip},
		{"", true, Skip},
	}
	for _, tt := range tests {
		p, out := interactive(tt.input)
		e.CanShrink = tt.canShrink
		got, err := p.ResolveExhaustion(context.Background(), e)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
		assert.Contains(t, out.String(), "[3] Skip this algorithm")
	}

	p, out := interactive("2\n")
	_, err := p.ResolveExhaustion(context.Background(), e)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "linear_regression, ridge, gradient_boosting")
}

func TestConfirmAccept(t *testing.T) {
	for input, want := range map[string]bool{"y\n": true, "YES\n": true, "\n": false, "n\n": false, "": false} {
		p, _ := interactive(input)
		got, err := p.ConfirmAccept(context.Background(), "z", algorithm.Ridge, 0.9, 0.8)
		require.NoError(t, err)
		assert.Equal(t, want, got, "input %q", input)
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p, _ := interactive("y\n")
	_, _, err := p.ChooseAlgorithms(ctx, algorithm.Ridge, false)
	assert.ErrorIs(t, err, context.Canceled)
}
