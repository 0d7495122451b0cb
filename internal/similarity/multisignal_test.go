package similarity

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/DRSN-tech/go-similarity/internal/domain"
	"github.com/DRSN-tech/go-similarity/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodePNG создаёт одноцветное тестовое изображение указанного размера.
func encodePNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestComputeImageStats(t *testing.T) {
	data := encodePNG(t, 64, 32, color.RGBA{R: 255, A: 255})

	stats, err := ComputeImageStats(data)
	require.NoError(t, err)

	assert.Equal(t, 64, stats.Width)
	assert.Equal(t, 32, stats.Height)
	assert.InDelta(t, 2.0, stats.AspectRatio, 1e-9)
	assert.Equal(t, statsGridSize*statsGridSize, len(stats.Gray))
	assert.InDelta(t, 1.0, stats.ChannelMeans[0], 0.01)
	assert.InDelta(t, 0.0, stats.ChannelMeans[1], 0.01)
}

func TestComputeImageStats_InvalidInput(t *testing.T) {
	_, err := ComputeImageStats(nil)
	assert.ErrorIs(t, err, e.ErrEmptyImage)

	_, err = ComputeImageStats([]byte("not an image"))
	require.Error(t, err)
	assert.Equal(t, e.KindData, e.KindOf(err))
}

func TestMultiSignalScorer_WeightsMustSumToOne(t *testing.T) {
	_, err := NewMultiSignalScorer(domain.SignalWeights{Spatial: 0.5, Feature: 0.2})
	assert.ErrorIs(t, err, e.ErrInvalidWeights)

	_, err = NewMultiSignalScorer(domain.DefaultSignalWeights())
	assert.NoError(t, err)
}

func TestMultiSignalScorer_IdenticalImages(t *testing.T) {
	scorer, err := NewMultiSignalScorer(domain.DefaultSignalWeights())
	require.NoError(t, err)

	data := encodePNG(t, 40, 40, color.RGBA{R: 120, G: 80, B: 40, A: 255})
	stats, err := ComputeImageStats(data)
	require.NoError(t, err)

	labels := []domain.ImageLabel{{Name: "sneaker", Confidence: 0.9}}

	score := scorer.Score(stats, stats, labels, labels)
	assert.Greater(t, score, 0.95)
}

func TestMultiSignalScorer_MissingStatsAndLabelsAreNeutral(t *testing.T) {
	scorer, err := NewMultiSignalScorer(domain.DefaultSignalWeights())
	require.NoError(t, err)

	// все пять сигналов нейтральны
	score := scorer.Score(nil, nil, nil, nil)
	assert.InDelta(t, 0.5, score, 1e-9)
}

func TestSemanticScore_Jaccard(t *testing.T) {
	labelsA := []domain.ImageLabel{{Name: "shoe"}, {Name: "leather"}, {Name: "brown"}}
	labelsB := []domain.ImageLabel{{Name: "shoe"}, {Name: "leather"}, {Name: "black"}}

	// пересечение 2, объединение 4
	assert.InDelta(t, 0.5, semanticScore(labelsA, labelsB), 1e-9)

	assert.Equal(t, 0.5, semanticScore(nil, labelsB))
	assert.Equal(t, 0.5, semanticScore(labelsA, nil))
}

func TestCompositionAndBackgroundScores(t *testing.T) {
	small, err := ComputeImageStats(encodePNG(t, 20, 20, color.White))
	require.NoError(t, err)
	large, err := ComputeImageStats(encodePNG(t, 40, 20, color.White))
	require.NoError(t, err)

	assert.InDelta(t, 0.5, compositionScore(small, large), 1e-9)
	assert.InDelta(t, 1.0, backgroundScore(small, large), 0.01)

	dark, err := ComputeImageStats(encodePNG(t, 20, 20, color.Black))
	require.NoError(t, err)
	assert.Less(t, backgroundScore(small, dark), 0.1)
}
