package similarity

import (
	"math"

	"github.com/DRSN-tech/go-similarity/internal/domain"
)

// neutralScore используется, когда сигнал невозможно вычислить:
// нейтральное значение не тянет итоговую оценку ни вверх, ни вниз.
const neutralScore = 0.5

// MultiSignalScorer — взвешенная оценка схожести пары изображений по пяти сигналам:
// пространственному, признаковому, семантическому, композиционному и фоновому.
// Включается для тенанта настройкой; при выключении кластеризация использует
// чистую косинусную схожесть с теми же порогами.
type MultiSignalScorer struct {
	weights domain.SignalWeights
}

func NewMultiSignalScorer(weights domain.SignalWeights) (*MultiSignalScorer, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	return &MultiSignalScorer{
		weights: weights,
	}, nil
}

// Score возвращает взвешенную оценку схожести пары в [0, 1].
// Отсутствующие характеристики или метки дают нейтральные под-оценки.
func (m *MultiSignalScorer) Score(a, b *ImageStats, labelsA, labelsB []domain.ImageLabel) float64 {
	spatial, feature, composition, background := neutralScore, neutralScore, neutralScore, neutralScore
	if a != nil && b != nil {
		spatial = spatialScore(a, b)
		feature = featureScore(a, b)
		composition = compositionScore(a, b)
		background = backgroundScore(a, b)
	}

	semantic := semanticScore(labelsA, labelsB)

	score := m.weights.Spatial*spatial +
		m.weights.Feature*feature +
		m.weights.Semantic*semantic +
		m.weights.Composition*composition +
		m.weights.Background*background

	return clamp01(score)
}

// spatialScore: 0.4 близости соотношений сторон + 0.6 корреляции карт границ.
func spatialScore(a, b *ImageStats) float64 {
	aspect := ratioCloseness(a.AspectRatio, b.AspectRatio)
	edge := (correlation(a.Edges, b.Edges) + 1) / 2 // Пирсон [-1,1] -> [0,1]
	return 0.4*aspect + 0.6*edge
}

// featureScore: единица минус нормированная средняя абсолютная разность
// полутоновых сеток.
func featureScore(a, b *ImageStats) float64 {
	if len(a.Gray) == 0 || len(a.Gray) != len(b.Gray) {
		return neutralScore
	}

	var diff float64
	for i := range a.Gray {
		diff += abs(a.Gray[i] - b.Gray[i])
	}

	return clamp01(1 - diff/float64(len(a.Gray)))
}

// semanticScore: Жаккар по множествам меток; нейтральна, если меток нет.
func semanticScore(labelsA, labelsB []domain.ImageLabel) float64 {
	if len(labelsA) == 0 || len(labelsB) == 0 {
		return neutralScore
	}

	setA := domain.LabelNames(labelsA)
	setB := domain.LabelNames(labelsB)

	var intersection int
	for name := range setA {
		if _, ok := setB[name]; ok {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return neutralScore
	}

	return float64(intersection) / float64(union)
}

// compositionScore: отношение меньшей площади к большей.
func compositionScore(a, b *ImageStats) float64 {
	areaA, areaB := float64(a.PixelArea()), float64(b.PixelArea())
	if areaA == 0 || areaB == 0 {
		return neutralScore
	}

	return math.Min(areaA, areaB) / math.Max(areaA, areaB)
}

// backgroundScore: пересечение гистограмм по средним значениям каналов.
func backgroundScore(a, b *ImageStats) float64 {
	var minSum, maxSum float64
	for c := 0; c < 3; c++ {
		minSum += math.Min(a.ChannelMeans[c], b.ChannelMeans[c])
		maxSum += math.Max(a.ChannelMeans[c], b.ChannelMeans[c])
	}

	if maxSum == 0 {
		return neutralScore
	}

	return minSum / maxSum
}

func ratioCloseness(a, b float64) float64 {
	if a == 0 || b == 0 {
		return neutralScore
	}

	return math.Min(a, b) / math.Max(a, b)
}

// correlation — коэффициент корреляции Пирсона двух рядов одинаковой длины.
func correlation(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	n := float64(len(a))
	var meanA, meanB float64
	for i := range a {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= n
	meanB /= n

	var cov, varA, varB float64
	for i := range a {
		da, db := a[i]-meanA, b[i]-meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}

	if varA == 0 || varB == 0 {
		// плоские карты (одноцветный фон) считаем идеально согласованными
		if varA == varB {
			return 1
		}
		return 0
	}

	return cov / math.Sqrt(varA*varB)
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
