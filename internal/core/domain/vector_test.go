package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 1}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1}, []float32{1, 1}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity(nil, nil), 1e-9)
}
