package testkit

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeriesGenerator_Regimes(t *testing.T) {
	gen := NewSeriesGenerator(SeriesGeneratorConfig{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Base:  10,
		Regimes: []Regime{
			{Points: 3, Slope: 1},
			{Points: 2, Shift: -5},
		},
		Spikes: []Spike{{Ordinal: 4, Magnitude: 2}, {Ordinal: 99, Magnitude: 1}},
	})

	dates, values := gen.Generate()
	require.Len(t, dates, 5)
	assert.Equal(t, []float64{10, 11, 12, 7, 9}, values)
	assert.Equal(t, 24*time.Hour, dates[1].Sub(dates[0]))
}

func TestSeriesGenerator_PatternNoise(t *testing.T) {
	gen := NewSeriesGenerator(SeriesGeneratorConfig{
		Base:    0,
		Regimes: []Regime{{Points: 8}},
		Noise:   0.5,
	})
	_, values := gen.Generate()
	assert.Equal(t, []float64{0.5, -0.5, -0.5, 0.5, 0.5, -0.5, -0.5, 0.5}, values)
}

func TestSeriesGenerator_UniformNoiseIsSeeded(t *testing.T) {
	cfg := DefaultSeriesConfig()
	cfg.NoiseKind = NoiseUniform

	_, a := NewSeriesGenerator(cfg).Generate()
	_, b := NewSeriesGenerator(cfg).Generate()
	assert.Equal(t, a, b)
	for i, v := range a {
		assert.InDelta(t, 79.0, v, 4.0, "row %d", i)
	}
}

func TestSeriesGenerator_CSV(t *testing.T) {
	gen := NewSeriesGenerator(SeriesGeneratorConfig{
		Start:   time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC),
		Base:    80,
		Regimes: []Regime{{Points: 2, Slope: 0.25}},
	})

	lines := strings.Split(strings.TrimSpace(gen.CSV("mass_kg")), "\n")
	assert.Equal(t, []string{
		"date,mass_kg",
		"09/03/2024,80.0000",
		"10/03/2024,80.2500",
	}, lines)
}
