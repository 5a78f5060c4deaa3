package testkit

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"gospc/domain/core"
)

// NoiseKind selects how measurement noise is generated.
type NoiseKind string

const (
	// NoisePattern repeats +a, -a, -a, +a. The pattern has zero mean and almost no
	// linear component, so fits stay close to the underlying line and |z| stays near 1.
	NoisePattern NoiseKind = "pattern"
	// NoiseUniform draws from U(-a, a) with the configured seed.
	NoiseUniform NoiseKind = "uniform"
)

// Regime is a stretch of the series following one straight line.
type Regime struct {
	Points int     `json:"points"`
	Shift  float64 `json:"shift"` // level jump applied at the first point of the regime
	Slope  float64 `json:"slope"` // change per time unit
}

// Spike displaces a single point.
type Spike struct {
	Ordinal   int     `json:"ordinal"`
	Magnitude float64 `json:"magnitude"`
}

// SeriesGeneratorConfig configures the synthetic measurement generator
type SeriesGeneratorConfig struct {
	Start     time.Time     `json:"start"`
	Step      time.Duration `json:"step"`
	Base      float64       `json:"base"`
	Regimes   []Regime      `json:"regimes"`
	Spikes    []Spike       `json:"spikes"`
	Noise     float64       `json:"noise"`
	NoiseKind NoiseKind     `json:"noise_kind"`
	Seed      int64         `json:"seed"`
}

// DefaultSeriesConfig returns a daily body-mass style series with two regimes.
func DefaultSeriesConfig() SeriesGeneratorConfig {
	return SeriesGeneratorConfig{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Step:  24 * time.Hour,
		Base:  82.0,
		Regimes: []Regime{
			{Points: 60, Slope: -0.05},
			{Points: 60, Shift: -3, Slope: 0.02},
		},
		Noise:     0.2,
		NoiseKind: NoisePattern,
		Seed:      42,
	}
}

// SeriesGenerator produces deterministic trend series for tests and demos
type SeriesGenerator struct {
	config SeriesGeneratorConfig
	rng    *rand.Rand
}

// NewSeriesGenerator creates a new series generator
func NewSeriesGenerator(config SeriesGeneratorConfig) *SeriesGenerator {
	if config.Step == 0 {
		config.Step = 24 * time.Hour
	}
	if config.NoiseKind == "" {
		config.NoiseKind = NoisePattern
	}
	return &SeriesGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Generate returns aligned dates and values.
func (g *SeriesGenerator) Generate() ([]time.Time, []float64) {
	total := 0
	for _, r := range g.config.Regimes {
		total += r.Points
	}

	dates := make([]time.Time, 0, total)
	values := make([]float64, 0, total)

	level := g.config.Base
	i := 0
	for _, regime := range g.config.Regimes {
		level += regime.Shift
		for j := 0; j < regime.Points; j++ {
			if j > 0 {
				level += regime.Slope
			}
			dates = append(dates, g.config.Start.Add(time.Duration(i)*g.config.Step))
			values = append(values, level+g.noise(i))
			i++
		}
	}

	for _, spike := range g.config.Spikes {
		if spike.Ordinal >= 0 && spike.Ordinal < len(values) {
			values[spike.Ordinal] += spike.Magnitude
		}
	}
	return dates, values
}

// GenerateText returns the dates rendered in the day/month/year convention.
func (g *SeriesGenerator) GenerateText() ([]string, []float64) {
	dates, values := g.Generate()
	texts := make([]string, len(dates))
	for i, d := range dates {
		texts[i] = core.FormatDate(d)
	}
	return texts, values
}

// CSV renders the series as a staging file with a date column and one metric column.
func (g *SeriesGenerator) CSV(metric string) string {
	texts, values := g.GenerateText()
	var b strings.Builder
	fmt.Fprintf(&b, "date,%s\n", metric)
	for i := range texts {
		b.WriteString(texts[i])
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(values[i], 'f', 4, 64))
		b.WriteByte('\n')
	}
	return b.String()
}

func (g *SeriesGenerator) noise(i int) float64 {
	a := g.config.Noise
	if a == 0 {
		return 0
	}
	switch g.config.NoiseKind {
	case NoiseUniform:
		return (g.rng.Float64()*2 - 1) * a
	default:
		switch i % 4 {
		case 0, 3:
			return a
		default:
			return -a
		}
	}
}
