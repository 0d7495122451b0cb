// Package similarity реализует косинусную схожесть векторов, классификацию по порогам
// и жадную однопроходную кластеризацию изображений в группы товаров.
package similarity

import (
	"math"
	"sort"

	"github.com/DRSN-tech/go-similarity/internal/domain"
	"github.com/DRSN-tech/go-similarity/pkg/e"
)

// Cosine вычисляет косинусную схожесть двух векторов одинаковой размерности.
// Пустые векторы, разные размерности и не-конечные компоненты — ошибка валидации.
// Для вектора нулевой длины (магнитуды) возвращается 0 вместо деления на ноль.
// Результат не ограничивается снизу нулём: используемые модели эмбеддингов
// дают неотрицательные компоненты, поэтому оценка фактически лежит в [0, 1].
func Cosine(a, b []float32) (float64, error) {
	if err := domain.ValidateVector(a); err != nil {
		return 0, err
	}
	if err := domain.ValidateVector(b); err != nil {
		return 0, err
	}
	if len(a) != len(b) {
		return 0, e.ErrVectorDimMismatch
	}

	var dot, magA, magB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		magA += x * x
		magB += y * y
	}

	if magA == 0 || magB == 0 {
		return 0, nil
	}

	return dot / (math.Sqrt(magA) * math.Sqrt(magB)), nil
}

// CorpusVector — один вектор корпуса тенанта при линейном поиске.
type CorpusVector struct {
	ImageID string
	GroupID string
	Vector  []float32
}

// Engine выполняет поиск схожих изображений и кластеризацию с заданными порогами.
type Engine struct {
	thresholds domain.Thresholds
}

func NewEngine(thresholds domain.Thresholds) *Engine {
	return &Engine{
		thresholds: thresholds,
	}
}

// Thresholds возвращает пороги, с которыми сконструирован движок.
func (en *Engine) Thresholds() domain.Thresholds {
	return en.thresholds
}

// Classify возвращает класс схожести для оценки score.
func (en *Engine) Classify(score float64) domain.Tier {
	return en.thresholds.Classify(score)
}

// FindSimilar выполняет линейный проход по корпусу, отбрасывает совпадения
// класса different и возвращает остальные по убыванию схожести.
// Некорректные векторы корпуса пропускаются, ошибкой является только
// некорректный вектор запроса.
func (en *Engine) FindSimilar(vector []float32, corpus []CorpusVector, excludeID string) ([]domain.SimilarityMatch, error) {
	if err := domain.ValidateVector(vector); err != nil {
		return nil, err
	}

	matches := make([]domain.SimilarityMatch, 0, len(corpus))
	for _, cv := range corpus {
		if cv.ImageID == excludeID {
			continue
		}

		score, err := Cosine(vector, cv.Vector)
		if err != nil {
			continue
		}

		tier := en.thresholds.Classify(score)
		if tier == domain.TierDifferent {
			continue
		}

		matches = append(matches, domain.NewSimilarityMatch(cv.ImageID, score, tier, cv.GroupID))
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	return matches, nil
}
