package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentile(t *testing.T) {
	values := []float64{0.9, 0.1, 0.5, 0.7, 0.3}
	assert.Equal(t, 0.0, Percentile(nil, 50))
	assert.Equal(t, 0.5, Percentile(values, 50))
	assert.Equal(t, 0.9, Percentile(values, 100))
	assert.Equal(t, 0.1, Percentile(values, 0))
	assert.Equal(t, 0.9, values[0], "input must not be reordered")
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))

	s := Summarize([]float64{1, 0.8, 0.9, 1})
	assert.Equal(t, 4, s.Count)
	assert.InDelta(t, 0.925, s.Mean, 1e-9)
	assert.Equal(t, 0.8, s.Min)
	assert.Equal(t, 1.0, s.Max)
	assert.Equal(t, 0.9, s.P50)
}
